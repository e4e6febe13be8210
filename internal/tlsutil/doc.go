// Package tlsutil 为生成后端、内容审核接口与 Redis 快照存储提供统一的
// TLS 客户端配置：TLS 1.2+，仅 AEAD 密码套件。
package tlsutil
