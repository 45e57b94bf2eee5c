package protocol

import (
	"bytes"
	"strings"

	"github.com/HojinB/MARS-UI/define"
)

// IsStatusMessage 判断一行文本是否为固件状态消息
func IsStatusMessage(line string) bool {
	for _, kw := range define.StatusKeywords {
		if strings.Contains(line, kw) {
			return true
		}
	}
	return false
}

// ScanStatusLines 从缓冲区头部提取换行结尾的文本行。
// 返回其中匹配状态关键字的行（已去除首尾空白）以及消费的字节数；
// 不以换行结尾的尾部保留在缓冲区里等待后续字节。
// 无法解码的字节按原样忽略，只有关键字行会被上报。
func ScanStatusLines(buf []byte) ([]string, int) {
	var lines []string
	consumed := 0
	for {
		nl := bytes.IndexByte(buf[consumed:], '\n')
		if nl < 0 {
			break
		}
		raw := buf[consumed : consumed+nl]
		consumed += nl + 1

		line := strings.TrimSpace(string(raw))
		if line == "" {
			continue
		}
		if IsStatusMessage(line) {
			lines = append(lines, line)
		}
	}
	return lines, consumed
}
