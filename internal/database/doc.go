// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 database 提供基于 GORM 的数据库打开与连接池管理，供 SQL 快照
后端与迁移命令共享。

# 核心类型

  - Open：按驱动（postgres / mysql / sqlite）创建 GORM 实例
  - PoolManager：持有 GORM DB 与底层 sql.DB，提供 Ping、Stats、Close
  - WithTransactionRetry：死锁、序列化失败等可重试错误的指数退避重试
*/
package database
