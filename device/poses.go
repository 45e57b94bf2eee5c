package device

import (
	"fmt"
	"sync"
	"time"

	"github.com/HojinB/MARS-UI/define"
)

// Pose 一个命名的关节角度快照，保存后可复用
type Pose struct {
	Name      string                   `json:"name"`
	Timestamp time.Time                `json:"timestamp"`
	LeftArm   [define.NumJoints]uint32 `json:"left_arm"`
	RightArm  [define.NumJoints]uint32 `json:"right_arm"`
}

// PoseStore 已保存姿势的内存存储
type PoseStore struct {
	mu    sync.Mutex
	poses []Pose
	seq   int
}

func NewPoseStore() *PoseStore { return &PoseStore{} }

// Save 保存一个姿势快照，name 为空时自动编号
func (p *PoseStore) Save(name string, snap Snapshot) Pose {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++
	if name == "" {
		name = fmt.Sprintf("pose_%03d", p.seq)
	}
	pose := Pose{
		Name:      name,
		Timestamp: time.Now(),
		LeftArm:   snap.LeftArm,
		RightArm:  snap.RightArm,
	}
	p.poses = append(p.poses, pose)
	return pose
}

// List 返回全部已保存姿势的副本
func (p *PoseStore) List() []Pose {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Pose, len(p.poses))
	copy(out, p.poses)
	return out
}

// Clear 清空所有姿势
func (p *PoseStore) Clear() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.poses)
	p.poses = nil
	return n
}
