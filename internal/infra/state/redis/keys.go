// Package redisstate 提供匹配队列与房间文档的 Redis 实现。
//
// 两类文档都以 JSON 存储，所有依赖当前内容的写入都通过 WATCH/MULTI
// 乐观事务完成：在 WATCH 保护下读取文档、纯函数式地计算新文档、
// TxPipelined 条件写回；并发冲突 (TxFailedErr) 在内部透明重试。
// 每次成功写入都把完整文档快照发布到对应的事件频道，实现实时订阅。
package redisstate

import "fmt"

// maxTxRetries 是乐观事务的最大重试次数。纯粹的并发冲突会在此范围
// 内透明重试，耗尽后返回 repository.ErrTxConflict。
const maxTxRetries = 16

func queueEntryKey(prefix, id string) string {
	return fmt.Sprintf("%squeue:entry:%s", prefix, id)
}

// 按 CreatedAt(毫秒) 排序的队列扫描索引 (ZSET)
func queueIndexKey(prefix string) string {
	return fmt.Sprintf("%squeue:index", prefix)
}

// 某用户持有的条目 ID 集合 (SET)，用于按 uid 查询/清理
func queueUserKey(prefix string, uid uint) string {
	return fmt.Sprintf("%squeue:user:%d", prefix, uid)
}

func queueEntryChannel(prefix, id string) string {
	return fmt.Sprintf("%squeue:entry:%s:events", prefix, id)
}

func roomKey(prefix, id string) string {
	return fmt.Sprintf("%sroom:%s", prefix, id)
}

// 按 CreatedAt(毫秒) 排序的房间清理索引 (ZSET)
func roomIndexKey(prefix string) string {
	return fmt.Sprintf("%sroom:index", prefix)
}

func roomEventsChannel(prefix, id string) string {
	return fmt.Sprintf("%sroom:%s:events", prefix, id)
}

func roomMessagesChannel(prefix, id string) string {
	return fmt.Sprintf("%sroom:%s:messages", prefix, id)
}

func presenceKey(prefix string, uid uint) string {
	return fmt.Sprintf("%spresence:%d", prefix, uid)
}
