package command_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/SinarPandora/Jellyfish-sub000/internal/command"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expName  string
		expCap   string
		expPass  string
	}{
		{
			name:    "位置语法: 人数+房间名",
			input:   "4 开黑房",
			expName: "开黑房",
			expCap:  "4",
		},
		{
			name:    "位置语法: 只有房间名",
			input:   "周末联机",
			expName: "周末联机",
		},
		{
			name:    "位置语法: 人数+房间名+密码",
			input:   "6 自习室 2335",
			expName: "自习室",
			expCap:  "6",
			expPass: "2335",
		},
		{
			name:    "位置语法: 不限人数",
			input:   "不限 大厅",
			expName: "大厅",
			expCap:  "0",
		},
		{
			name:    "位置语法: unlimited 别名",
			input:   "unlimited lobby",
			expName: "lobby",
			expCap:  "0",
		},
		{
			name:    "关键字语法: 人数+密码",
			input:   "人数 6 密码 2335",
			expCap:  "6",
			expPass: "2335",
		},
		{
			name:    "关键字语法: ASCII 别名",
			input:   "count 8 password 1024",
			expCap:  "8",
			expPass: "1024",
		},
		{
			name:    "关键字语法: 只有人数",
			input:   "人数3",
			expCap:  "3",
		},
		{
			name:    "关键字语法: 重复出现时后者覆盖",
			input:   "人数 3 人数 5",
			expCap:  "5",
		},
		{
			name:  "空输入产出空参数",
			input: "",
		},
		{
			name:  "纯空白输入产出空参数",
			input: "   ",
		},
		{
			name:    "多词房间名",
			input:   "周五 晚上 开黑",
			expName: "周五 晚上 开黑",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := command.Parse(tt.input)
			assert.Equal(t, tt.expName, args.Name, "房间名解析结果不符")
			assert.Equal(t, tt.expCap, args.Capacity, "人数 token 解析结果不符")
			assert.Equal(t, tt.expPass, args.Password, "密码解析结果不符")
			assert.Equal(t, tt.input, args.RawText, "原始文本应原样保留")
		})
	}
}
