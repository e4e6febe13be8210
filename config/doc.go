// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 config 提供 AgentDesk 的配置管理。

# 服务配置

Loader 按 默认值 → YAML 文件 → 环境变量（前缀 AGENTDESK_）的顺序
加载 Config，覆盖 server / llm / moderation / session / persistence /
agents / log / telemetry 各节以及强制路由表。

# Agent 与安全规则

Agent 与安全规则保存在两个 JSON 列表文件中。AgentCatalog 负责加载、
校验与增删改：最多 MaxAgents 个 Agent，名称唯一且不超过 50 字符，
triage Agent 不可删除或改名。每次变更先经 ApplyFunc 生效（重建会话），
再写回文件。

# 文件监听

FileWatcher 通过 fsnotify（轮询兜底）检测文件修改时间并防抖回调；WatchCatalog 在文件变化时
调用 AgentCatalog.Reload。
*/
package config
