package task

import "context"

// Handler 处理一条任务 ID。返回错误时由具体队列决定是否重新投递。
type Handler func(ctx context.Context, taskID string) error

// Producer 投递任务 ID。
type Producer interface {
	Publish(ctx context.Context, taskID string) error
	Close() error
}

// Consumer 以 workerCount 个协程消费任务 ID，直到 ctx 结束。
// 投递语义为至少一次，处理器依赖 Store.Claim 去重。
type Consumer interface {
	Consume(ctx context.Context, workerCount int, handler Handler) error
	Close() error
}

// Queue 同时是生产者与消费者。memory、redis、rabbitmq 三种实现见同包。
type Queue interface {
	Producer
	Consumer
}
