// Copyright (c) Doppl Authors.
// Licensed under the MIT License.

/*
Package gateway 是虚拟试穿生成的编排入口。

# 流程

	Validate → prompt.Build → Adapter.Call → normalize.Normalize → result.Parser.Parse

每一步的错误都原样返回，网关不做重试与降级。Generate 会开启一个
"vton.generate" span，并把结果通知给可选的 Observer（Prometheus 收集器）。

# 用法

	gw := gateway.NewDefault(gateway.Config{DefaultLanguage: vton.LangEN}, logger)
	res, err := gw.Generate(ctx, &vton.GenerationRequest{...})
*/
package gateway
