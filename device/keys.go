package device

import (
	"fmt"
	"sync"
)

// 键位语义（与 OpenCR 固件约定一致）：
//   1 — 右臂重力模式切换（toggle）
//   2 — 录制切换（toggle）
//   3 — 左臂按键 2（push，按住为 ON）
//   4 — 左臂重力模式切换（toggle）
//   5 — 清除录制（push）
//   6 — 右臂按键 2（push）
const keyCount = 6

var toggleKeys = map[int]bool{1: true, 2: true, 4: true}

// KeyAction 按键动作
type KeyAction string

const (
	KeyPress   KeyAction = "press"
	KeyRelease KeyAction = "release"
)

// KeyState 六键切换/按压状态。
// 浏览器端只上报原始按下/抬起事件，切换语义在这里统一处理，
// 避免键盘自动重复造成的抖动。
type KeyState struct {
	mu      sync.Mutex
	state   [keyCount]bool
	pressed [keyCount]bool // 物理按住状态，用于抑制按键重复
}

func NewKeyState() *KeyState { return &KeyState{} }

// Apply 处理一次按键事件，返回处理后是否需要把状态下发到设备，
// 以及该键当前的逻辑状态。键序号非法时报错。
func (k *KeyState) Apply(key int, action KeyAction) (changed bool, on bool, err error) {
	if key < 1 || key > keyCount {
		return false, false, fmt.Errorf("非法键位 %d，必须在 1-%d 之间", key, keyCount)
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	idx := key - 1

	switch action {
	case KeyPress:
		if k.pressed[idx] {
			return false, k.state[idx], nil // 按键重复，忽略
		}
		k.pressed[idx] = true
		if toggleKeys[key] {
			k.state[idx] = !k.state[idx]
		} else {
			k.state[idx] = true
		}
		return true, k.state[idx], nil

	case KeyRelease:
		k.pressed[idx] = false
		if !toggleKeys[key] && k.state[idx] {
			k.state[idx] = false
			return true, false, nil
		}
		return false, k.state[idx], nil

	default:
		return false, false, fmt.Errorf("未知按键动作 %q", action)
	}
}

// Encode 按固件约定编码当前状态："KEY:XXXXXX"，每位 0/1 对应键 1-6
func (k *KeyState) Encode() string {
	k.mu.Lock()
	defer k.mu.Unlock()
	buf := []byte("KEY:000000")
	for i, on := range k.state {
		if on {
			buf[4+i] = '1'
		}
	}
	return string(buf)
}

// Snapshot 返回各键逻辑状态副本
func (k *KeyState) Snapshot() [keyCount]bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.state
}
