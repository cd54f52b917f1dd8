package domain

import (
	"fmt"
	"strings"
)

// Identity 是主来源（primary resolver）一步产出的字段集。
type Identity struct {
	Name string
	URL  string
	Date PartialDate
}

// Enrichment 是某个补充来源一步产出的字段集（全部字段一次性提交）。
// 字段为空表示该来源没有提供，不覆盖已有值。
type Enrichment struct {
	Source    string
	URL       string
	Developer string
	Publisher string
}

// Concept 是目标系统中“作品概念”的本地表示。
type Concept struct {
	Name      string
	Developer string
	// URLs 为来源链接；补充来源的 URL 插在前面，主来源 URL 永远在最后。
	URLs []string
}

// Release 是目标系统中“发行版本”的本地表示。
type Release struct {
	Barcode   string
	Publisher string
	Date      PartialDate
}

// Record 是一件藏品的聚合根。
//
// 约束：Record 只能由 NewRecord 基于主来源结果创建，之后每个补充步骤通过
// WithEnrichment 产生新值（不修改旧值）；目标系统只读消费。
type Record struct {
	Concept Concept
	Release Release

	sources []string
}

// NewRecord 用主来源结果初始化 Record。
func NewRecord(barcode string, id Identity) (Record, error) {
	name := strings.TrimSpace(id.Name)
	if name == "" {
		return Record{}, fmt.Errorf("主来源未给出作品名称")
	}
	r := Record{
		Concept: Concept{Name: name},
		Release: Release{Barcode: strings.TrimSpace(barcode), Date: id.Date},
	}
	if u := strings.TrimSpace(id.URL); u != "" {
		r.Concept.URLs = []string{u}
	}
	return r, nil
}

// WithEnrichment 合并一个补充步骤的字段集，返回新的 Record。
//
// 规则：developer/publisher 先写者胜（已有非空值不被覆盖）；URL 插入到最前面。
func (r Record) WithEnrichment(e Enrichment) Record {
	out := r
	out.Concept.URLs = append([]string(nil), r.Concept.URLs...)
	out.sources = append([]string(nil), r.sources...)

	if out.Concept.Developer == "" {
		out.Concept.Developer = strings.TrimSpace(e.Developer)
	}
	if out.Release.Publisher == "" {
		out.Release.Publisher = strings.TrimSpace(e.Publisher)
	}
	if u := strings.TrimSpace(e.URL); u != "" {
		out.Concept.URLs = append([]string{u}, out.Concept.URLs...)
	}
	if s := strings.TrimSpace(e.Source); s != "" {
		out.sources = append(out.sources, s)
	}
	return out
}

// Sources 返回已合并的补充来源名（按合并顺序）。
func (r Record) Sources() []string { return append([]string(nil), r.sources...) }

func (r Record) String() string {
	return fmt.Sprintf("concept: name=%q developer=%q urls=%v\nrelease: barcode=%q publisher=%q date=%s",
		r.Concept.Name, r.Concept.Developer, r.Concept.URLs,
		r.Release.Barcode, r.Release.Publisher, r.Release.Date,
	)
}
