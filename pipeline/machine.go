package pipeline

import (
	"fmt"
	"sync"
	"time"
)

// Phase 是生成流程所处的阶段，取值为封闭集合
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseGeneratingPortraits
	PhaseGeneratingFullBody
	PhaseRefining
	PhaseRefined
	PhaseSubmitting
	PhasePolling
	PhaseSuccess
	PhaseError
)

var phaseNames = [...]string{
	PhaseIdle:                "idle",
	PhaseGeneratingPortraits: "generating_portraits",
	PhaseGeneratingFullBody:  "generating_full_body",
	PhaseRefining:            "refining",
	PhaseRefined:             "refined",
	PhaseSubmitting:          "submitting",
	PhasePolling:             "polling",
	PhaseSuccess:             "success",
	PhaseError:               "error",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return fmt.Sprintf("phase(%d)", int(p))
	}
	return phaseNames[p]
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Terminal 表示本次操作已结束，需显式重置后才能开始新操作
func (p Phase) Terminal() bool {
	return p == PhaseSuccess || p == PhaseError
}

// Busy 表示有外部调用正在进行
func (p Phase) Busy() bool {
	switch p {
	case PhaseGeneratingPortraits, PhaseGeneratingFullBody, PhaseRefining, PhaseSubmitting, PhasePolling:
		return true
	}
	return false
}

// 合法迁移表；终态回到 Idle 只能走 Reset
var transitions = map[Phase][]Phase{
	PhaseIdle:                {PhaseGeneratingPortraits, PhaseGeneratingFullBody, PhaseRefining, PhaseRefined},
	PhaseGeneratingPortraits: {PhaseIdle, PhaseError},
	PhaseGeneratingFullBody:  {PhaseIdle, PhaseError},
	PhaseRefining:            {PhaseRefined, PhaseError},
	PhaseRefined:             {PhaseRefining, PhaseSubmitting},
	PhaseSubmitting:          {PhasePolling, PhaseError},
	PhasePolling:             {PhasePolling, PhaseSuccess, PhaseError},
	PhaseSuccess:             {},
	PhaseError:               {},
}

func canTransition(from, to Phase) bool {
	for _, p := range transitions[from] {
		if p == to {
			return true
		}
	}
	return false
}

// PollingMessages 在 Polling 阶段按固定间隔轮换展示
var PollingMessages = []string{
	"Warming up the AI director...",
	"The digital avatar is getting ready for their close-up...",
	"Rendering the Dubai skyline...",
	"Adding a touch of cinematic magic...",
	"Finalizing the video scenes...",
	"Polishing the golden and blue hues...",
}

type GenerationStatus struct {
	Phase   Phase  `json:"phase"`
	Message string `json:"message"`
}

type TransitionError struct {
	From Phase
	To   Phase
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal phase transition %s -> %s", e.From, e.To)
}

// Machine 持有一个流程的当前状态，并向订阅者广播每次变化
type Machine struct {
	mu          sync.Mutex
	status      GenerationStatus
	subs        map[int]chan GenerationStatus
	nextSub     int
	rotateEvery time.Duration
	rotateStop  chan struct{}
	rotateIdx   int
}

func NewMachine(rotateEvery time.Duration, initialMessage string) *Machine {
	if rotateEvery <= 0 {
		rotateEvery = 4 * time.Second
	}
	return &Machine{
		status:      GenerationStatus{Phase: PhaseIdle, Message: initialMessage},
		subs:        make(map[int]chan GenerationStatus),
		rotateEvery: rotateEvery,
	}
}

func (m *Machine) Status() GenerationStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Set 执行一次 "设置阶段 + 消息"；进入 Polling 时消息改由轮换计时器驱动
func (m *Machine) Set(phase Phase, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	from := m.status.Phase
	if !canTransition(from, phase) {
		return &TransitionError{From: from, To: phase}
	}
	switch {
	case phase == PhasePolling && from != PhasePolling:
		m.rotateIdx = 0
		m.status = GenerationStatus{Phase: phase, Message: PollingMessages[0]}
		m.startRotationLocked()
	case phase == PhasePolling:
		// 自环：空消息保持轮换，非空消息固定显示
		if message == "" {
			return nil
		}
		m.stopRotationLocked()
		m.status.Message = message
	default:
		m.stopRotationLocked()
		m.status = GenerationStatus{Phase: phase, Message: message}
	}
	m.broadcastLocked()
	return nil
}

// Reset 回到 Idle，任何阶段均可调用
func (m *Machine) Reset(message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopRotationLocked()
	m.status = GenerationStatus{Phase: PhaseIdle, Message: message}
	m.broadcastLocked()
}

// Subscribe 返回只保留最新值的状态通道，订阅时立即收到当前状态
func (m *Machine) Subscribe() (<-chan GenerationStatus, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextSub
	m.nextSub++
	ch := make(chan GenerationStatus, 1)
	ch <- m.status
	m.subs[id] = ch
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			delete(m.subs, id)
			close(ch)
		})
	}
	return ch, cancel
}

func (m *Machine) broadcastLocked() {
	for _, ch := range m.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- m.status:
		default:
		}
	}
}

func (m *Machine) startRotationLocked() {
	m.stopRotationLocked()
	stop := make(chan struct{})
	m.rotateStop = stop
	go m.rotate(stop)
}

func (m *Machine) stopRotationLocked() {
	if m.rotateStop != nil {
		close(m.rotateStop)
		m.rotateStop = nil
	}
}

func (m *Machine) rotate(stop <-chan struct{}) {
	ticker := time.NewTicker(m.rotateEvery)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.mu.Lock()
			if m.rotateStop != stop || m.status.Phase != PhasePolling {
				m.mu.Unlock()
				return
			}
			m.rotateIdx = (m.rotateIdx + 1) % len(PollingMessages)
			m.status.Message = PollingMessages[m.rotateIdx]
			m.broadcastLocked()
			m.mu.Unlock()
		}
	}
}
