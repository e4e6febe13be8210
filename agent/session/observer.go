package session

import "time"

// Observer 接收会话事件，internal/metrics.Collector 实现了该接口。
type Observer interface {
	TurnProcessed(method, author string, elapsed time.Duration)
	MessageBlocked(source, rule string)
	ResponseCorrected(label string)
	GenerationFailed(kind string)
}

type nopObserver struct{}

func (nopObserver) TurnProcessed(string, string, time.Duration) {}
func (nopObserver) MessageBlocked(string, string) {}
func (nopObserver) ResponseCorrected(string) {}
func (nopObserver) GenerationFailed(string) {}
