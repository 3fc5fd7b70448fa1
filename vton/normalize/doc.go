// Package normalize 把 Provider 原始输出归一为 vton.UniversalResponse。
//
// Classify 先把原始输出归入封闭的 Shape 集合，Normalize 再对每个形状穷举处理；
// Unrecognized 形状总是报错。
package normalize
