package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrPicturesExhausted 表示图片序列在填满所有图片槽位之前就用完了。
// 这是不可恢复的错误：上层不做补救，直接终止。
var ErrPicturesExhausted = errors.New("图片已用完")

// PictureSlot 是配置模板中的一个图片槽位（拍摄意图）。
type PictureSlot struct {
	Detail    string `yaml:"detail"`
	Attribute string `yaml:"attribute,omitempty"`
}

// Tags 返回该槽位的属性标签（Detail 在前，空值不返回）。
func (s PictureSlot) Tags() []string {
	out := make([]string, 0, 2)
	if d := strings.TrimSpace(s.Detail); d != "" {
		out = append(out, d)
	}
	if a := strings.TrimSpace(s.Attribute); a != "" {
		out = append(out, a)
	}
	return out
}

// PictureAssignment 把一张图片文件分配给一个槽位。
type PictureAssignment struct {
	File string
	Slot PictureSlot
}

// PictureQueue 是一次性的有序图片序列（不可回绕、不可重启）。
// 交互模式下多件藏品共用同一个 queue，依次消费。
type PictureQueue struct {
	files []string
	next  int
}

func NewPictureQueue(files []string) *PictureQueue {
	return &PictureQueue{files: append([]string(nil), files...)}
}

// Next 返回下一张图片；用完时返回 ErrPicturesExhausted。
func (q *PictureQueue) Next() (string, error) {
	if q == nil || q.next >= len(q.files) {
		return "", ErrPicturesExhausted
	}
	f := q.files[q.next]
	q.next++
	return f, nil
}

// Remaining 返回尚未消费的图片数量。
func (q *PictureQueue) Remaining() int {
	if q == nil {
		return 0
	}
	return len(q.files) - q.next
}

// AssignPictures 按槽位顺序从 queue 中取图片。
// 中途用完时返回包装了 ErrPicturesExhausted 的错误，已取出的图片不会退回。
func AssignPictures(guide []PictureSlot, q *PictureQueue) ([]PictureAssignment, error) {
	out := make([]PictureAssignment, 0, len(guide))
	for i, slot := range guide {
		f, err := q.Next()
		if err != nil {
			return nil, fmt.Errorf("槽位 %d（%s）：%w", i, slot.Detail, err)
		}
		out = append(out, PictureAssignment{File: f, Slot: slot})
	}
	return out, nil
}
