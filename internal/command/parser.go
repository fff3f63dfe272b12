// Package command 将用户的自由文本建房指令解析为结构化请求。
// 解析是纯函数：入口配置此刻尚未解析出来，所以产出的是一个待绑定的
// 构建器 (CreationArgs)，由调用方在查完配置缓存后再补全成完整请求。
package command

import (
	"regexp"
	"strings"
)

// CreationArgs 是解析出的建房参数构建器。
// Capacity 保留原始 token ("0" 表示不限，空串表示未指定)，
// 由服务层结合入口配置的默认值换算成生效上限。
type CreationArgs struct {
	Name     string // 房间名，空串表示未指定，下游回退到默认命名模板
	Capacity string // 人数 token，空串表示未指定
	Password string // 数字密码，空串表示无密码
	RawText  string // 原始指令文本，原样保留用于审计
}

// 关键字语法：在全文中反复扫描 <关键字> <整数> 组合。
// 机器人面向中文服务器，同时接受 ASCII 别名。
var keywordPairRe = regexp.MustCompile(`(人数|count|密码|password)\s*(\d+)`)

// 关键字语法的触发探测，只看关键字是否出现
var keywordProbeRe = regexp.MustCompile(`人数|count|密码|password`)

// 位置语法：[人数] 房间名 [密码]。
// 人数是前导的纯数字或“不限”；密码是结尾的纯数字段。
var positionalRe = regexp.MustCompile(`^(?:(\d+|unlimited|不限)\s+)?(.+?)(?:\s+(\d+))?$`)

// Parse 解析建房指令文本。两套语法互斥：
// 出现人数/密码关键字时走关键字语法，否则整体匹配位置语法。
func Parse(raw string) *CreationArgs {
	args := &CreationArgs{RawText: raw}
	text := strings.TrimSpace(raw)
	if text == "" {
		// 空输入产出空名请求，房间名由下游按默认模板解析
		return args
	}

	if keywordProbeRe.MatchString(text) {
		parseKeyword(text, args)
		return args
	}
	parsePositional(text, args)
	return args
}

// parseKeyword 扫描全部 <关键字> <整数> 组合，重复出现时后者覆盖前者。
// 房间名保持未指定。
func parseKeyword(text string, args *CreationArgs) {
	for _, m := range keywordPairRe.FindAllStringSubmatch(text, -1) {
		switch m[1] {
		case "人数", "count":
			args.Capacity = m[2]
		case "密码", "password":
			args.Password = m[2]
		}
	}
}

// parsePositional 整体匹配 [人数] 房间名 [密码]。
func parsePositional(text string, args *CreationArgs) {
	m := positionalRe.FindStringSubmatch(text)
	if m == nil {
		// 兜底：整串当作房间名
		args.Name = text
		return
	}
	if m[1] == "unlimited" || m[1] == "不限" {
		// “不限”归一化为人数哨兵值 0
		args.Capacity = "0"
	} else {
		args.Capacity = m[1]
	}
	args.Name = strings.TrimSpace(m[2])
	args.Password = m[3]
}
