// Package target 实现 Django admin 表单的填写协议：标量字段、inline 行、提交与确认。
package target

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/John-Robertt/gamefill/internal/browser"
)

// ConfirmSelector 是 Django admin 成功消息的位置。
const (
	ConfirmSelector = ".messagelist .success"
	ConfirmMarker   = "was added successfully"
)

// Prompter 是人工介入的能力：字段无法自动填写时，阻塞直到操作员确认已手工完成。
type Prompter interface {
	CompleteManually(ctx context.Context, field, want string, cause error) error
}

// SelectError 表示字段（或其中的选项）在表单上不存在。
// 它不会中止提交：Form 记录它并转为人工补全。
type SelectError struct {
	Field string
	Value string
	Err   error
}

func (e *SelectError) Error() string {
	return fmt.Sprintf("无法填写 %s=%q：%v", e.Field, e.Value, e.Err)
}

func (e *SelectError) Unwrap() error { return e.Err }

// Inline 描述一个 inline（重复行）区域：Table 为 tbody 的 selector，
// Field 为行内字段的 selector，"{index}" 会被替换为从 0 开始的行号。
type Inline struct {
	Table string
	Field string
}

func (in Inline) field(i int) string {
	return strings.ReplaceAll(in.Field, "{index}", strconv.Itoa(i))
}

// Form 在一个 Page 上填写一张 Django admin 表单。
//
// 约束：
// - 字段缺失或选项缺失一律阻塞等待人工补全（不跳过，也不中止）
// - Submit 之后的等待以 Timeouts.Human 为界，视为“无限等待人工/慢后端”
type Form struct {
	page   browser.Page
	prompt Prompter
	log    *zap.Logger
	t      browser.Timeouts

	manual []SelectError
}

func NewForm(page browser.Page, prompt Prompter, log *zap.Logger, t browser.Timeouts) *Form {
	if log == nil {
		log = zap.NewNop()
	}
	return &Form{page: page, prompt: prompt, log: log, t: t}
}

// FieldID 把字段名映射为 Django 生成的控件 id selector（"Primary nature" => "#id_primary_nature"）。
func FieldID(name string) string {
	return "#id_" + strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), " ", "_"))
}

// Manual 返回本表单中转为人工补全的字段。
func (f *Form) Manual() []SelectError { return append([]SelectError(nil), f.manual...) }

func (f *Form) Open(ctx context.Context, url string) error {
	return f.page.Navigate(ctx, url)
}

// SetText 填写文本字段；value 为空时不做任何操作。
func (f *Form) SetText(ctx context.Context, name, value string) error {
	if value == "" {
		return nil
	}
	return f.fill(ctx, name, value, f.page.Input(ctx, FieldID(name), value))
}

// SetSelect 按可见文本选择下拉选项；value 为空时不做任何操作。
func (f *Form) SetSelect(ctx context.Context, name, value string) error {
	if value == "" {
		return nil
	}
	return f.fill(ctx, name, value, f.page.SelectText(ctx, FieldID(name), value))
}

// SetRadio 点击单选组中标签文本等于 label 的选项。
func (f *Form) SetRadio(ctx context.Context, name, label string) error {
	return f.fill(ctx, name, label, f.page.ClickText(ctx, FieldID(name)+" label", label))
}

func (f *Form) SetFile(ctx context.Context, name, path string) error {
	return f.fill(ctx, name, path, f.page.SetFiles(ctx, FieldID(name), []string{path}))
}

// fill 处理一次字段写入的结果：元素或选项缺失转为人工补全，其它错误原样返回。
func (f *Form) fill(ctx context.Context, name, value string, err error) error {
	if err == nil {
		return nil
	}
	if !errors.Is(err, browser.ErrNoElement) && !errors.Is(err, browser.ErrNoChoice) {
		return fmt.Errorf("填写 %s：%w", name, err)
	}
	se := SelectError{Field: name, Value: value, Err: err}
	f.manual = append(f.manual, se)
	f.log.Warn("字段无法自动填写，等待人工补全",
		zap.String("field", name), zap.String("value", value), zap.Error(err))
	if f.prompt == nil {
		return &se
	}
	if perr := f.prompt.CompleteManually(ctx, name, value, &se); perr != nil {
		return fmt.Errorf("等待人工补全 %s：%w", name, perr)
	}
	return nil
}

// Rows 返回 inline 区域中已存在的可用行数（不含模板行）。
func (f *Form) Rows(ctx context.Context, table string) (int, error) {
	n, err := f.page.Count(ctx, table+" tr.form-row")
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, fmt.Errorf("inline 区域 %s：%w", table, browser.ErrNoElement)
	}
	// 最后一行 form-row 是 empty-form 模板。
	return n - 1, nil
}

// GrowInlines 把 inline 区域扩充到至少 n 行，返回新增的行数。
//
// 已有 m 行时：m >= n 不做任何操作；否则恰好点击 n-m 次 add-row。
func (f *Form) GrowInlines(ctx context.Context, table string, n int) (int, error) {
	m, err := f.Rows(ctx, table)
	if err != nil {
		return 0, err
	}
	if m >= n {
		return 0, nil
	}
	add := table + " .add-row > td > a"
	for i := m; i < n; i++ {
		if err := f.page.Click(ctx, add); err != nil {
			return i - m, fmt.Errorf("增加 inline 行（%s）：%w", table, err)
		}
	}
	if err := browser.WaitCount(ctx, f.page, table+" tr.form-row", n+1, f.t.Dependents, f.t.Poll); err != nil {
		return n - m, err
	}
	f.log.Debug("inline 行已扩充", zap.String("table", table), zap.Int("from", m), zap.Int("to", n))
	return n - m, nil
}

// SetInlines 扩充行数后按位置逐行写入 values（按控件类型选择输入或下拉）。
func (f *Form) SetInlines(ctx context.Context, in Inline, values []string) error {
	if len(values) == 0 {
		return nil
	}
	if _, err := f.GrowInlines(ctx, in.Table, len(values)); err != nil {
		return err
	}
	for i, v := range values {
		sel := in.field(i)
		tag, err := f.page.TagName(ctx, sel)
		if err != nil {
			if ferr := f.fill(ctx, sel, v, err); ferr != nil {
				return ferr
			}
			continue
		}
		switch tag {
		case "input", "textarea":
			err = f.page.Input(ctx, sel, v)
		case "select":
			err = f.page.SelectText(ctx, sel, v)
		default:
			return fmt.Errorf("inline 字段 %s 的控件类型不支持：%s", sel, tag)
		}
		if err := f.fill(ctx, sel, v, err); err != nil {
			return err
		}
	}
	return nil
}

// WaitChoices 等待异步加载的下拉框出现至少一个真实选项（空白占位项之外）。
// 超时只记录警告：后续 SetSelect 会在选项缺失时转为人工补全。
func (f *Form) WaitChoices(ctx context.Context, name string) {
	sel := FieldID(name) + " option"
	if err := browser.WaitCount(ctx, f.page, sel, 2, f.t.Dependents, f.t.Poll); err != nil {
		if ctx.Err() != nil {
			return
		}
		f.log.Warn("依赖下拉框未加载完成", zap.String("field", name), zap.Error(err))
	}
}

// Submit 提交表单并阻塞等待成功消息，返回系统确认的名称。
func (f *Form) Submit(ctx context.Context, formID string) (string, error) {
	if err := f.page.Submit(ctx, "#"+strings.TrimPrefix(formID, "#")); err != nil {
		return "", fmt.Errorf("提交 %s：%w", formID, err)
	}
	return f.Confirm(ctx)
}

// Confirm 阻塞等待成功消息出现，并从中提取名称。
func (f *Form) Confirm(ctx context.Context) (string, error) {
	msg, err := browser.WaitText(ctx, f.page, ConfirmSelector, ConfirmMarker, f.t.Human, f.t.Poll)
	if err != nil {
		return "", err
	}
	name, err := SavedName(msg)
	if err != nil {
		return "", err
	}
	f.log.Info("提交已确认", zap.String("saved_name", name))
	return name, nil
}

// SavedName 提取确认消息中第一个与最后一个双引号之间的文本。
func SavedName(msg string) (string, error) {
	first := strings.Index(msg, `"`)
	last := strings.LastIndex(msg, `"`)
	if first < 0 || last <= first {
		return "", fmt.Errorf("确认消息中没有引号包围的名称：%q", msg)
	}
	name := strings.TrimSpace(msg[first+1 : last])
	if name == "" {
		return "", fmt.Errorf("确认消息中的名称为空：%q", msg)
	}
	return name, nil
}
