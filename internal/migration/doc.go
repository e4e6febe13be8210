// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 migration 管理 SQL 快照后端的 Schema，基于 golang-migrate，
支持 PostgreSQL、MySQL 与 SQLite。

迁移文件通过 embed.FS 内嵌，每种方言一个目录，目前只有
conversation_turns 一张表。DSN 与 persistence.sql_dsn 共用，
由 `agentdesk migrate <command>` 调用。

  - Migrator / DefaultMigrator：Up/Down/Steps/Goto/Force/Version/Status/Info
  - CLI：子命令分发与表格输出
  - NewMigratorFromConfig：从应用配置创建迁移器
*/
package migration
