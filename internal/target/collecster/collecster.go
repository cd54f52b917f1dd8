// Package collecster 把聚合后的 Record 依次提交到 Collecster 的 Django admin：
// concept → release → occurrence。后一步只能引用前一步系统确认过的名称。
package collecster

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/John-Robertt/gamefill/internal/browser"
	"github.com/John-Robertt/gamefill/internal/domain"
	"github.com/John-Robertt/gamefill/internal/target"
)

const (
	DefaultBaseURL   = "http://collecster.adnn.fr/admin/advideogame/"
	DefaultHomeTitle = "Advideogame administration | Django site admin"
)

var (
	conceptURLs = target.Inline{
		Table: "#concepturl_set-group > div > fieldset > table > tbody",
		Field: "#id_concepturl_set-{index}-url",
	}
	releaseAttributes = target.Inline{
		Table: "#attributes-group > div > fieldset > table > tbody",
		Field: "#id_attributes-{index}-attribute",
	}
	pictureTable = "#pictures-group > div > fieldset > table > tbody"
)

// Template 是目标系统表单中与具体藏品无关的固定取值。
type Template struct {
	Nature              string
	Region              string
	SystemSpecification string
	Attributes          []string
	Origin              string
	WorkingCondition    string
	Pictures            []domain.PictureSlot
}

// ConceptRef 是系统确认过的 concept 名称。
// 只能由 CreateConcept 或 ReuseConcept 得到，零值不可用于提交 release。
type ConceptRef struct{ name string }

func (r ConceptRef) Name() string { return r.name }
func (r ConceptRef) IsZero() bool { return r.name == "" }

// ReleaseRef 是系统确认过的 release 名称。
type ReleaseRef struct{ name string }

func (r ReleaseRef) Name() string { return r.name }
func (r ReleaseRef) IsZero() bool { return r.name == "" }

// ReuseConcept 引用一个已在系统中存在的 concept（跳过创建）。
func ReuseConcept(name string) (ConceptRef, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return ConceptRef{}, errors.New("concept 名称不能为空")
	}
	return ConceptRef{name: name}, nil
}

// ReuseRelease 引用一个已在系统中存在的 release（跳过创建）。
func ReuseRelease(name string) (ReleaseRef, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return ReleaseRef{}, errors.New("release 名称不能为空")
	}
	return ReleaseRef{name: name}, nil
}

// Collecster 是目标系统适配器。Page 由调用方切换到目标窗口后传入。
type Collecster struct {
	BaseURL   string
	HomeTitle string
	Template  Template
	Prompt    target.Prompter
	Log       *zap.Logger
	Timeouts  browser.Timeouts
}

func (c *Collecster) baseURL() string {
	u := strings.TrimSpace(c.BaseURL)
	if u == "" {
		u = DefaultBaseURL
	}
	return strings.TrimRight(u, "/") + "/"
}

func (c *Collecster) homeTitle() string {
	if c.HomeTitle == "" {
		return DefaultHomeTitle
	}
	return c.HomeTitle
}

func (c *Collecster) logger() *zap.Logger {
	if c.Log == nil {
		return zap.NewNop()
	}
	return c.Log
}

func (c *Collecster) form(page browser.Page) *target.Form {
	return target.NewForm(page, c.Prompt, c.logger(), c.Timeouts)
}

// Login 打开后台首页；有凭据时自动填写并提交登录表单，然后等待首页标题出现。
// 没有凭据（或自动登录失败）时由操作员在浏览器中手工登录，等待上限为 Timeouts.Human。
func (c *Collecster) Login(ctx context.Context, page browser.Page, creds map[string]string) error {
	f := c.form(page)
	if err := f.Open(ctx, c.baseURL()); err != nil {
		return fmt.Errorf("打开后台：%w", err)
	}
	if len(creds) > 0 {
		keys := make([]string, 0, len(creds))
		for k := range creds {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if err := f.SetText(ctx, k, creds[k]); err != nil {
				return err
			}
		}
		if err := page.Submit(ctx, "#login-form"); err != nil {
			c.logger().Warn("自动登录失败，等待手工登录", zap.Error(err))
		}
	} else {
		c.logger().Info("未提供凭据，请在浏览器中手工登录")
	}
	if err := browser.WaitTitle(ctx, page, c.homeTitle(), c.Timeouts.Human, c.Timeouts.Poll); err != nil {
		return fmt.Errorf("登录：%w", err)
	}
	c.logger().Info("已登录目标系统", zap.String("url", c.baseURL()))
	return nil
}

// CreateConcept 提交 concept 表单并返回系统确认的名称。
func (c *Collecster) CreateConcept(ctx context.Context, page browser.Page, concept domain.Concept) (ConceptRef, error) {
	f := c.form(page)
	if err := f.Open(ctx, c.baseURL()+"concept/add/"); err != nil {
		return ConceptRef{}, err
	}
	if err := f.SetText(ctx, "Distinctive name", concept.Name); err != nil {
		return ConceptRef{}, err
	}
	if err := f.SetSelect(ctx, "Primary nature", c.Template.Nature); err != nil {
		return ConceptRef{}, err
	}
	if err := f.SetSelect(ctx, "Developer", concept.Developer); err != nil {
		return ConceptRef{}, err
	}
	if err := f.SetInlines(ctx, conceptURLs, concept.URLs); err != nil {
		return ConceptRef{}, err
	}
	name, err := f.Submit(ctx, "concept_form")
	if err != nil {
		return ConceptRef{}, fmt.Errorf("提交 concept：%w", err)
	}
	return ConceptRef{name: name}, nil
}

// CreateRelease 提交 release 表单；concept 必须来自已确认的提交或显式复用。
func (c *Collecster) CreateRelease(ctx context.Context, page browser.Page, concept ConceptRef, release domain.Release) (ReleaseRef, error) {
	if concept.IsZero() {
		return ReleaseRef{}, errors.New("release 依赖的 concept 尚未确认")
	}
	f := c.form(page)
	if err := f.Open(ctx, c.baseURL()+"release/add/"); err != nil {
		return ReleaseRef{}, err
	}
	if err := f.SetSelect(ctx, "Concept", concept.Name()); err != nil {
		return ReleaseRef{}, err
	}
	if !release.Date.IsZero() {
		if err := f.SetText(ctx, "partial_date", release.Date.Value()); err != nil {
			return ReleaseRef{}, err
		}
		if err := f.SetRadio(ctx, "partial_date_precision", string(release.Date.Precision())); err != nil {
			return ReleaseRef{}, err
		}
	}
	if err := f.SetText(ctx, "Barcode", release.Barcode); err != nil {
		return ReleaseRef{}, err
	}
	if err := f.SetSelect(ctx, "Release regions", c.Template.Region); err != nil {
		return ReleaseRef{}, err
	}
	if err := f.SetSelect(ctx, "System specification", c.Template.SystemSpecification); err != nil {
		return ReleaseRef{}, err
	}
	if err := f.SetInlines(ctx, releaseAttributes, c.Template.Attributes); err != nil {
		return ReleaseRef{}, err
	}
	if err := f.SetText(ctx, "software-0-publisher", release.Publisher); err != nil {
		return ReleaseRef{}, err
	}
	name, err := f.Submit(ctx, "release_form")
	if err != nil {
		return ReleaseRef{}, fmt.Errorf("提交 release：%w", err)
	}
	return ReleaseRef{name: name}, nil
}

// CreateOccurrence 提交 occurrence 表单（含图片行），返回系统确认的名称。
func (c *Collecster) CreateOccurrence(ctx context.Context, page browser.Page, release ReleaseRef, pictures []domain.PictureAssignment) (string, error) {
	if release.IsZero() {
		return "", errors.New("occurrence 依赖的 release 尚未确认")
	}
	f := c.form(page)
	if err := f.Open(ctx, c.baseURL()+"occurrence/add/"); err != nil {
		return "", err
	}
	if err := f.SetSelect(ctx, "Release", release.Name()); err != nil {
		return "", err
	}
	if err := f.SetSelect(ctx, "Origin", c.Template.Origin); err != nil {
		return "", err
	}

	if len(pictures) > 0 {
		if _, err := f.GrowInlines(ctx, pictureTable, len(pictures)); err != nil {
			return "", err
		}
		// 属性选项随所选 release 异步加载。
		f.WaitChoices(ctx, "pictures-0-any_attribute")
	}
	for i, p := range pictures {
		prefix := fmt.Sprintf("pictures-%d-", i)
		if err := f.SetFile(ctx, prefix+"image_file", p.File); err != nil {
			return "", err
		}
		if err := f.SetSelect(ctx, prefix+"detail", p.Slot.Detail); err != nil {
			return "", err
		}
		if err := f.SetSelect(ctx, prefix+"any_attribute", p.Slot.Attribute); err != nil {
			return "", err
		}
	}

	if err := f.SetSelect(ctx, "operationalocc-0-working_condition", c.Template.WorkingCondition); err != nil {
		return "", err
	}
	name, err := f.Submit(ctx, "occurrence_form")
	if err != nil {
		return "", fmt.Errorf("提交 occurrence：%w", err)
	}
	return name, nil
}
