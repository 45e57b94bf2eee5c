// Package stream 提供编码器采样的有界队列扇出处理。
//
// 生产者（串口读取循环）通过 Submit 以非阻塞方式投递采样，
// 单个消费者按提交顺序依次调用所有已注册订阅者。
// 队列满时按丢弃策略处理而不是阻塞生产者：
// 实时管线宁可丢采样也不能拖慢串口读取。
package stream

import (
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// Sample 一次采样，进入队列后不可变
type Sample struct {
	Timestamp     time.Time `json:"timestamp"`
	Angles        []float64 `json:"angles"`
	Seq           uint64    `json:"seq"`
	SessionID     string    `json:"session_id"`
	CaptureTimeNs int64     `json:"capture_time_ns"`
	SendTimeNs    int64     `json:"send_time_ns"`
}

// Subscriber 采样观察者。OnSample 在消费者 goroutine 上同步调用，
// 实现方不应长时间阻塞。
type Subscriber interface {
	OnSample(Sample)
}

// DropPolicy 队列满时的丢弃策略
type DropPolicy int

const (
	// DropNewest 丢弃新到达的采样（上游原始行为，偏向保留旧数据）
	DropNewest DropPolicy = iota
	// DropOldest 挤掉队列中最旧的采样，偏向低延迟
	DropOldest
)

// ParsePolicy 把配置字符串转换为丢弃策略，未知值回落到 DropNewest
func ParsePolicy(s string) DropPolicy {
	if s == "oldest" {
		return DropOldest
	}
	return DropNewest
}

// Stats 处理统计快照
type Stats struct {
	Submitted uint64    `json:"submitted"`
	Processed uint64    `json:"processed"`
	Dropped   uint64    `json:"dropped"`
	FPS       float64   `json:"fps"`
	StartTime time.Time `json:"start_time"`
}

var ErrNotRunning = errors.New("stream worker 未运行")

const joinTimeout = 2 * time.Second

// Worker 有界队列 + 单消费者线程
type Worker struct {
	queue  chan Sample
	policy DropPolicy

	mu   sync.Mutex
	subs []Subscriber

	running atomic.Bool
	quit    chan struct{}
	done    chan struct{}

	submitted atomic.Uint64
	processed atomic.Uint64
	dropped   atomic.Uint64

	statsMu   sync.Mutex
	startTime time.Time
	lastFPS   float64
}

// NewWorker 创建流处理器，capacity <= 0 时使用默认容量 1000
func NewWorker(capacity int, policy DropPolicy) *Worker {
	if capacity <= 0 {
		capacity = 1000
	}
	return &Worker{
		queue:  make(chan Sample, capacity),
		policy: policy,
	}
}

// AddSubscriber 注册一个订阅者，可与消费循环并发调用
func (w *Worker) AddSubscriber(sub Subscriber) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.subs = append(w.subs, sub)
	log.Printf("📥 流订阅者已注册，当前 %d 个", len(w.subs))
}

// RemoveSubscriber 按身份移除订阅者
func (w *Worker) RemoveSubscriber(sub Subscriber) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, s := range w.subs {
		if s == sub {
			w.subs = append(w.subs[:i], w.subs[i+1:]...)
			log.Printf("📤 流订阅者已移除，剩余 %d 个", len(w.subs))
			return
		}
	}
}

// Start 启动消费者线程，重复调用为空操作
func (w *Worker) Start() {
	if !w.running.CompareAndSwap(false, true) {
		return
	}
	w.quit = make(chan struct{})
	w.done = make(chan struct{})
	w.statsMu.Lock()
	w.startTime = time.Now()
	w.statsMu.Unlock()
	go w.consumeLoop()
	log.Println("🚀 流处理器已启动")
}

// Stop 通知消费者退出并等待，最多等待 joinTimeout 后放弃
func (w *Worker) Stop() {
	if !w.running.CompareAndSwap(true, false) {
		return
	}
	close(w.quit)
	select {
	case <-w.done:
	case <-time.After(joinTimeout):
		log.Println("⚠️ 流处理器关闭超时，放弃等待")
	}
	log.Printf("🛑 流处理器已停止，共处理 %d 个采样", w.processed.Load())
}

// Submit 非阻塞投递一个采样。
// 队列满时按丢弃策略处理并返回 false，绝不阻塞调用方。
func (w *Worker) Submit(s Sample) bool {
	if !w.running.Load() {
		return false
	}
	w.submitted.Add(1)

	select {
	case w.queue <- s:
		return true
	default:
	}

	if w.policy == DropOldest {
		// 挤掉最旧的一个再重试；与消费者竞争时最多让一步
		select {
		case <-w.queue:
			w.dropped.Add(1)
		default:
		}
		select {
		case w.queue <- s:
			return true
		default:
		}
	}
	w.dropped.Add(1)
	return false
}

func (w *Worker) consumeLoop() {
	defer close(w.done)

	lastStats := time.Now()
	var sinceStats uint64

	for {
		select {
		case s := <-w.queue:
			w.dispatch(s)
			w.processed.Add(1)
			sinceStats++

			// 每 5 秒折算一次处理 FPS
			if now := time.Now(); now.Sub(lastStats) >= 5*time.Second {
				w.statsMu.Lock()
				w.lastFPS = float64(sinceStats) / now.Sub(lastStats).Seconds()
				w.statsMu.Unlock()
				lastStats = now
				sinceStats = 0
			}
		case <-w.quit:
			// 哨兵信号：清空已入队的采样后退出，保证 FIFO 不截断
			for {
				select {
				case s := <-w.queue:
					w.dispatch(s)
					w.processed.Add(1)
				default:
					return
				}
			}
		}
	}
}

// dispatch 按注册顺序调用所有订阅者；
// 单个订阅者 panic 只记录日志，不影响其余订阅者和后续采样
func (w *Worker) dispatch(s Sample) {
	w.mu.Lock()
	subs := make([]Subscriber, len(w.subs))
	copy(subs, w.subs)
	w.mu.Unlock()

	for _, sub := range subs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("⚠️ 流订阅者异常: %v", r)
				}
			}()
			sub.OnSample(s)
		}()
	}
}

// Stats 返回统计快照
func (w *Worker) Stats() Stats {
	w.statsMu.Lock()
	fps := w.lastFPS
	start := w.startTime
	w.statsMu.Unlock()
	return Stats{
		Submitted: w.submitted.Load(),
		Processed: w.processed.Load(),
		Dropped:   w.dropped.Load(),
		FPS:       fps,
		StartTime: start,
	}
}

// Running 返回消费者是否在运行
func (w *Worker) Running() bool {
	return w.running.Load()
}
