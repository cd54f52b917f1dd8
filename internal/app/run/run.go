package run

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/John-Robertt/gamefill/internal/app/retry"
	"github.com/John-Robertt/gamefill/internal/browser"
	"github.com/John-Robertt/gamefill/internal/config"
	"github.com/John-Robertt/gamefill/internal/domain"
	"github.com/John-Robertt/gamefill/internal/source"
	"github.com/John-Robertt/gamefill/internal/target/collecster"
)

// State 是单件藏品状态机中的状态。
type State string

const (
	StateStart            State = "start"
	StateResolvePrimary   State = "resolve_primary"
	StateEnrich           State = "enrich"
	StateSubmitConcept    State = "submit_concept"
	StateSubmitRelease    State = "submit_release"
	StateSubmitOccurrence State = "submit_occurrence"
	StateDone             State = "done"
	StateAborted          State = "aborted"
)

// Windows 按角色切换浏览器窗口（*browser.Router 实现）。
type Windows interface {
	Switch(ctx context.Context, role browser.Role) (browser.Page, error)
}

// Target 是目标系统的三步提交能力（*collecster.Collecster 实现）。
// 后一步的参数只能来自前一步的返回值或显式复用，顺序由类型保证。
type Target interface {
	CreateConcept(ctx context.Context, page browser.Page, c domain.Concept) (collecster.ConceptRef, error)
	CreateRelease(ctx context.Context, page browser.Page, c collecster.ConceptRef, r domain.Release) (collecster.ReleaseRef, error)
	CreateOccurrence(ctx context.Context, page browser.Page, r collecster.ReleaseRef, pictures []domain.PictureAssignment) (string, error)
}

// Operator 是流程中唯一允许把失败转为人工交互的协作者。
type Operator interface {
	retry.Decider
	// ManualEnrichment 在补充来源被跳过时录入缺失字段。
	ManualEnrichment(ctx context.Context, source string, rec domain.Record) (domain.Enrichment, error)
}

// KeySource 提供下一个查找键；ok=false 表示没有更多输入。
type KeySource interface {
	NextKey(ctx context.Context) (key string, ok bool, err error)
}

// Keys 是固定列表形式的 KeySource（单次模式）。
type Keys []string

func (k *Keys) NextKey(ctx context.Context) (string, bool, error) {
	if len(*k) == 0 {
		return "", false, nil
	}
	next := (*k)[0]
	*k = (*k)[1:]
	return next, true, nil
}

// Request 是处理一件藏品的输入（除查找键外，对循环中的每件藏品都相同）。
type Request struct {
	// Skip 中的补充来源不执行抓取，由操作员手工录入。
	Skip []string
	// Concept 非空时复用已存在的 concept，不再提交 concept 表单。
	Concept string
	// Release 非空时复用已存在的 release，concept 与 release 表单都不再提交。
	Release string
	// Pictures 在整个运行中共享，按顺序消费。
	Pictures *domain.PictureQueue
}

// Snapshots 保存解析失败时的页面 HTML（cache.Store 实现）。
type Snapshots interface {
	SaveHTML(source, key string, html []byte) (string, error)
}

// Runner 驱动“主来源 → 补充来源 → 三步提交”的状态机。
//
// 约束：
// - 单线程：窗口严格按顺序访问，切换由 Runner 负责
// - 未找到/解析失败只终止当前藏品；图片用完与 ctx 结束是致命错误，终止整个运行
type Runner struct {
	Config    config.EffectiveConfig
	Windows   Windows
	Primary   source.Resolver
	Enrichers source.Registry
	Target    Target
	Operator  Operator
	Log       *zap.Logger
	Observer  Observer
	// Snapshots 为空时不保存快照。
	Snapshots Snapshots
}

func (r *Runner) log() *zap.Logger {
	if r.Log == nil {
		return zap.NewNop()
	}
	return r.Log
}

func (r *Runner) obs() Observer {
	if r.Observer == nil {
		return nopObserver{}
	}
	return r.Observer
}

// Run 逐个处理 keys 给出的查找键，直到输入结束、出现致命错误或 ctx 结束。
// 返回的 RunReport 总是包含已处理的条目；error 仅表示运行被提前终止。
func (r *Runner) Run(ctx context.Context, keys KeySource, req Request) (domain.RunReport, error) {
	rr := domain.RunReport{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Items:     make([]domain.ItemResult, 0, 4),
	}
	r.obs().OnStart(rr.RunID, r.Config)
	log := r.log().With(zap.String("run", rr.RunID))

	finish := func(err error) (domain.RunReport, error) {
		rr.FinishedAt = time.Now().UTC()
		rr.Finalize()
		return rr, err
	}

	if err := r.Enrichers.Validate(req.Skip); err != nil {
		return finish(err)
	}

	for seq := 1; ; seq++ {
		key, ok, err := keys.NextKey(ctx)
		if err != nil {
			return finish(fmt.Errorf("读取查找键：%w", err))
		}
		if !ok {
			return finish(nil)
		}
		started := time.Now()
		res, err := r.Process(ctx, seq, key, req)
		rr.Items = append(rr.Items, res)
		r.obs().OnItemDone(res, time.Since(started))
		log.Info("藏品处理结束",
			zap.Int("seq", seq), zap.String("key", key),
			zap.String("status", res.Status), zap.String("error_code", res.ErrorCode))
		if err != nil {
			return finish(err)
		}
	}
}

// Process 处理一件藏品，返回其结果。
//
// 非致命失败（未找到、解析失败、提交失败）体现在 ItemResult 中，error 为 nil；
// error 非 nil 表示整个运行必须终止。
func (r *Runner) Process(ctx context.Context, seq int, rawKey string, req Request) (domain.ItemResult, error) {
	res := domain.ItemResult{
		Seq:      seq,
		Key:      strings.TrimSpace(rawKey),
		States:   []string{},
		Sources:  []string{},
		Skipped:  []string{},
		Attempts: []domain.SourceAttempt{},
		Pictures: []string{},
	}
	log := r.log().With(zap.Int("seq", seq), zap.String("key", res.Key))
	enter := func(st State) {
		res.States = append(res.States, string(st))
		r.obs().OnState(seq, res.Key, st)
		log.Debug("进入状态", zap.String("state", string(st)))
	}
	abort := func(code, msg string) (domain.ItemResult, error) {
		enter(StateAborted)
		res.Status = domain.StatusAborted
		res.ErrorCode = code
		res.ErrorMsg = msg
		log.Warn("藏品已中止", zap.String("error_code", code), zap.String("error", msg))
		return res, nil
	}
	fail := func(code string, err error, fatal bool) (domain.ItemResult, error) {
		res.Status = domain.StatusFailed
		res.ErrorCode = code
		res.ErrorMsg = err.Error()
		log.Error("藏品处理失败", zap.String("error_code", code), zap.Error(err))
		if fatal {
			return res, err
		}
		return res, nil
	}

	enter(StateStart)
	key, ok := domain.ParseLookupKey(rawKey)
	if !ok {
		return abort(domain.ErrCodeLookupFailed, "查找键为空")
	}

	// ResolvePrimary
	enter(StateResolvePrimary)
	page, err := r.Windows.Switch(ctx, browser.RolePrimary)
	if err != nil {
		return fail(domain.ErrCodeUnexpected, err, true)
	}
	id, err := source.Resolve(ctx, r.Primary, page, key)
	if err != nil {
		if ctx.Err() != nil {
			return fail(domain.ErrCodeUnexpected, ctx.Err(), true)
		}
		res.Attempts = append(res.Attempts, domain.SourceAttempt{Source: r.Primary.Name(), Stage: source.Stage(err), ErrorMsg: err.Error()})
		if source.Stage(err) == "parse" {
			r.snapshot(ctx, log, page, r.Primary.Name(), key.Raw)
		}
		switch {
		case errors.Is(err, source.ErrNotFound):
			return abort(domain.ErrCodeNotFound, fmt.Sprintf("%s 中没有 %q", r.Primary.Name(), key.Raw))
		case source.Stage(err) == "parse":
			return abort(domain.ErrCodeParseFailed, err.Error())
		default:
			return abort(domain.ErrCodeLookupFailed, err.Error())
		}
	}
	rec, err := domain.NewRecord(key.Barcode(), id)
	if err != nil {
		return abort(domain.ErrCodeParseFailed, err.Error())
	}
	res.Name = rec.Concept.Name
	res.Attempts = append(res.Attempts, domain.SourceAttempt{Source: r.Primary.Name(), Stage: "ok"})

	// EnrichSecondary：逐个来源，失败交给操作员决定重试或跳过。
	skip := make(map[string]bool, len(req.Skip))
	for _, s := range req.Skip {
		skip[strings.ToLower(strings.TrimSpace(s))] = true
	}
	for _, name := range r.Enrichers.Names() {
		enter(StateEnrich)
		e, _ := r.Enrichers.Get(name)

		if !skip[name] {
			page, err := r.Windows.Switch(ctx, browser.EnricherRole(name))
			if err != nil {
				return fail(domain.ErrCodeUnexpected, err, true)
			}
			// 解析失败后的重试只重新解析当前页面，保留操作员在浏览器中的修正；
			// 查找失败才重新查找。
			reparse := false
			out, err := retry.Do(ctx, name, r.Operator, func(ctx context.Context) (domain.Enrichment, error) {
				var (
					v   domain.Enrichment
					err error
				)
				if reparse {
					v, err = source.Reparse(ctx, e, page)
				} else {
					v, err = source.Enrich(ctx, e, page, rec.Concept.Name)
				}
				reparse = source.Stage(err) == "parse"
				if reparse {
					r.snapshot(ctx, log, page, name, rec.Concept.Name)
				}
				return v, err
			})
			for _, f := range out.Failures {
				res.Attempts = append(res.Attempts, domain.SourceAttempt{Source: name, Stage: source.Stage(f), ErrorMsg: f.Error()})
			}
			if err != nil {
				return fail(domain.ErrCodeUnexpected, err, true)
			}
			if !out.Skipped {
				rec = rec.WithEnrichment(out.Value)
				res.Attempts = append(res.Attempts, domain.SourceAttempt{Source: name, Stage: "ok"})
				continue
			}
		}

		res.Skipped = append(res.Skipped, name)
		res.Attempts = append(res.Attempts, domain.SourceAttempt{Source: name, Stage: "skip"})
		if r.Operator == nil || (rec.Concept.Developer != "" && rec.Release.Publisher != "") {
			continue
		}
		manual, err := r.Operator.ManualEnrichment(ctx, name, rec)
		if err != nil {
			return fail(domain.ErrCodeUnexpected, fmt.Errorf("手工录入 %s：%w", name, err), true)
		}
		// 手工值只提供字段，不提供来源链接。
		manual.URL = ""
		rec = rec.WithEnrichment(manual)
	}
	res.Sources = rec.Sources()
	log.Info("记录已合并", zap.Stringer("record", rec))

	// 三步提交：任何一步失败都停在当前藏品，已提交的部分留给操作员处理。
	page, err = r.Windows.Switch(ctx, browser.RoleTarget)
	if err != nil {
		return fail(domain.ErrCodeUnexpected, err, true)
	}

	// 图片不够时不创建任何记录，避免在目标系统里留下没有 occurrence 的 concept/release。
	if need := len(r.Config.Template.Pictures); req.Pictures.Remaining() < need {
		err := fmt.Errorf("需要 %d 张图片，剩余 %d 张：%w", need, req.Pictures.Remaining(), domain.ErrPicturesExhausted)
		return fail(domain.ErrCodePicturesExhausted, err, true)
	}

	var release collecster.ReleaseRef
	if req.Release != "" {
		release, err = collecster.ReuseRelease(req.Release)
		if err != nil {
			return fail(domain.ErrCodeSubmitFailed, err, false)
		}
		res.ReleaseSaved = release.Name()
		res.ReleaseReused = true
	} else {
		enter(StateSubmitConcept)
		var concept collecster.ConceptRef
		if req.Concept != "" {
			concept, err = collecster.ReuseConcept(req.Concept)
			if err != nil {
				return fail(domain.ErrCodeSubmitFailed, err, false)
			}
			res.ConceptReused = true
		} else {
			concept, err = r.Target.CreateConcept(ctx, page, rec.Concept)
			if err != nil {
				return fail(domain.ErrCodeSubmitFailed, err, ctx.Err() != nil)
			}
		}
		res.ConceptSaved = concept.Name()

		enter(StateSubmitRelease)
		release, err = r.Target.CreateRelease(ctx, page, concept, rec.Release)
		if err != nil {
			return fail(domain.ErrCodeSubmitFailed, err, ctx.Err() != nil)
		}
		res.ReleaseSaved = release.Name()
	}

	enter(StateSubmitOccurrence)
	pictures, err := domain.AssignPictures(r.Config.Template.Pictures, req.Pictures)
	if err != nil {
		return fail(domain.ErrCodePicturesExhausted, err, true)
	}
	for _, p := range pictures {
		res.Pictures = append(res.Pictures, p.File)
	}
	occ, err := r.Target.CreateOccurrence(ctx, page, release, pictures)
	if err != nil {
		return fail(domain.ErrCodeSubmitFailed, err, ctx.Err() != nil)
	}
	res.OccurrenceSaved = occ

	enter(StateDone)
	res.Status = domain.StatusDone
	return res, nil
}

// snapshot 保存当前页面的 HTML；任何失败只记录日志，不影响流程。
func (r *Runner) snapshot(ctx context.Context, log *zap.Logger, page browser.Page, src, key string) {
	if r.Snapshots == nil {
		return
	}
	html, err := page.HTML(ctx)
	if err != nil {
		log.Warn("读取页面快照失败", zap.String("source", src), zap.Error(err))
		return
	}
	path, err := r.Snapshots.SaveHTML(src, key, html)
	if err != nil {
		log.Warn("保存页面快照失败", zap.String("source", src), zap.Error(err))
		return
	}
	log.Info("已保存页面快照", zap.String("source", src), zap.String("path", path))
}
