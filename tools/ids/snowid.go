package ids

import (
	"strconv"
	"sync"
	"time"
)

// Generator 63 位雪花 ID：41 位毫秒时间戳，10 位节点，12 位序列
type Generator struct {
	mu       sync.Mutex
	epochMS  int64
	nodeID   int64 // 0~1023
	seq      int64 // 0~4095
	lastTSMS int64
	now      func() time.Time
}

var (
	defaultGen *Generator
	once       sync.Once
)

var defaultEpoch = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

func NewGenerator(nodeID int64) *Generator {
	if nodeID < 0 || nodeID > 1023 {
		nodeID = 1
	}
	return &Generator{
		epochMS: defaultEpoch.UnixMilli(),
		nodeID:  nodeID,
		now:     time.Now,
	}
}

func initDefault() {
	once.Do(func() {
		defaultGen = NewGenerator(1)
	})
}

// Generate 用全局生成器生成一个新 id
func Generate() int64 {
	initDefault()
	return defaultGen.Next()
}

func GenerateString() string {
	return strconv.FormatInt(Generate(), 10)
}

// SetNodeID 设置全局节点号（0~1023），main 中调用一次
func SetNodeID(nodeID int64) {
	initDefault()
	if nodeID < 0 || nodeID > 1023 {
		nodeID = 1
	}
	defaultGen.mu.Lock()
	defaultGen.nodeID = nodeID
	defaultGen.mu.Unlock()
}

func (g *Generator) NextString() string {
	return strconv.FormatInt(g.Next(), 10)
}

func (g *Generator) Next() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	for {
		now := g.now().UnixMilli()
		if now < g.lastTSMS {
			// 时钟回拨，等待
			time.Sleep(time.Duration(g.lastTSMS-now) * time.Millisecond)
			continue
		}
		if now == g.lastTSMS {
			g.seq = (g.seq + 1) & 0xFFF
			if g.seq == 0 {
				// 序列用完，等到下一毫秒
				for now <= g.lastTSMS {
					now = g.now().UnixMilli()
				}
			}
		} else {
			g.seq = 0
		}
		g.lastTSMS = now

		ts := (now - g.epochMS) & ((1 << 41) - 1)
		return (ts << 22) | (g.nodeID << 12) | g.seq
	}
}
