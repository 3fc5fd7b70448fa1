// Package result 从归一化响应中解析试穿图像与面料分析。
package result
