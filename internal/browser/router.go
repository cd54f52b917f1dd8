package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Role 是逻辑角色（目标系统、主来源、补充来源）。
type Role string

const (
	RoleTarget  Role = "target"
	RolePrimary Role = "primary"
)

// EnricherRole 返回补充来源对应的角色名。
func EnricherRole(name string) Role {
	return Role("enricher:" + strings.ToLower(strings.TrimSpace(name)))
}

// Opener 负责打开一个新窗口（rod 实现为 *Browser）。
type Opener interface {
	OpenWindow(ctx context.Context) (Page, error)
}

// Session 是 Router 中一个角色对应的窗口。
type Session struct {
	ID   string
	Role Role
	Page Page
}

// Router 把固定的角色集合映射到各自独立的窗口。
//
// 约束：
// - 所有窗口在启动时一次性打开，之后不再增减
// - 切换是调用方的责任：Router 不会在调用 Page 方法前自动切换
// - 单线程使用，不做并发保护
type Router struct {
	log      *zap.Logger
	order    []Role
	sessions map[Role]*Session
	active   Role
}

// Open 为每个角色打开一个窗口。任一窗口打开失败时关闭已打开的窗口并返回错误。
func Open(ctx context.Context, o Opener, log *zap.Logger, roles ...Role) (*Router, error) {
	if o == nil {
		return nil, errors.New("opener 不能为空")
	}
	if log == nil {
		log = zap.NewNop()
	}
	r := &Router{log: log, sessions: make(map[Role]*Session, len(roles))}
	for _, role := range roles {
		if role == "" {
			_ = r.Close()
			return nil, errors.New("role 不能为空")
		}
		if _, ok := r.sessions[role]; ok {
			_ = r.Close()
			return nil, fmt.Errorf("重复的 role：%q", role)
		}
		p, err := o.OpenWindow(ctx)
		if err != nil {
			_ = r.Close()
			return nil, fmt.Errorf("为 %s 打开窗口：%w", role, err)
		}
		s := &Session{ID: uuid.NewString(), Role: role, Page: p}
		r.sessions[role] = s
		r.order = append(r.order, role)
		log.Debug("窗口已打开", zap.String("role", string(role)), zap.String("session", s.ID))
	}
	return r, nil
}

// Switch 激活 role 对应的窗口并返回其 Page。
func (r *Router) Switch(ctx context.Context, role Role) (Page, error) {
	s, ok := r.sessions[role]
	if !ok {
		return nil, fmt.Errorf("未知 role：%q", role)
	}
	if err := s.Page.Activate(ctx); err != nil {
		return nil, fmt.Errorf("切换到 %s：%w", role, err)
	}
	r.active = role
	r.log.Debug("切换窗口", zap.String("role", string(role)), zap.String("session", s.ID))
	return s.Page, nil
}

// Active 返回当前激活的角色（尚未切换过时为空）。
func (r *Router) Active() Role { return r.active }

// Has 判断 role 是否已打开。
func (r *Router) Has(role Role) bool {
	_, ok := r.sessions[role]
	return ok
}

// Sessions 按打开顺序返回所有会话。
func (r *Router) Sessions() []Session {
	out := make([]Session, 0, len(r.order))
	for _, role := range r.order {
		out = append(out, *r.sessions[role])
	}
	return out
}

// Close 尽力关闭所有窗口（倒序），返回遇到的第一个错误。
func (r *Router) Close() error {
	var first error
	for i := len(r.order) - 1; i >= 0; i-- {
		role := r.order[i]
		if err := r.sessions[role].Page.Close(); err != nil && first == nil {
			first = fmt.Errorf("关闭 %s：%w", role, err)
		}
		delete(r.sessions, role)
	}
	r.order = nil
	r.active = ""
	return first
}
