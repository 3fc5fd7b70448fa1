// Package config 提供 Doppl 网关的配置管理功能。
//
// 配置按 默认值 → YAML 文件 → DOPPL_ 前缀环境变量 的顺序叠加，
// 可选先加载 .env 文件。Google 与 Custom 两段配置各自独立保存，
// 只作为请求未携带 provider 配置时的服务端默认值。
//
// Store 持有当前配置，配合 FileWatcher 在文件变化时重载；
// server、redis、log、telemetry 段只在重启后生效。
package config
