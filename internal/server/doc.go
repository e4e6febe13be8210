// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 server 管理 HTTP 服务器的生命周期。

Manager 封装 net/http.Server：Start 非阻塞地绑定端口，Run 阻塞到
上下文结束后优雅关闭，Shutdown 在超时内排空在途请求。serve 命令
为 API 与 Prometheus 指标各启动一个 Manager，并放进同一个 errgroup。
*/
package server
