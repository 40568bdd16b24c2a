// Package api 暴露 AgentKit 的 REST 接口：动作目录与调用、同步对话、异步任务，
// 以及 Prometheus 指标与健康检查。
package api
