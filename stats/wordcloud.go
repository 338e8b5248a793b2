package stats

import (
	"log"
	"sort"
	"strings"
	"unicode"

	"github.com/go-ego/gse"

	"github.com/cydxin/live-sdk/message"
)

// 停用词，弹幕里这些词出现太频繁没有信息量
var stopWords = map[string]struct{}{
	"的": {}, "了": {}, "是": {}, "在": {}, "我": {}, "有": {}, "和": {}, "就": {},
	"不": {}, "人": {}, "都": {}, "一": {}, "一个": {}, "上": {}, "也": {}, "很": {},
	"到": {}, "说": {}, "要": {}, "去": {}, "你": {}, "会": {}, "着": {}, "没有": {},
	"看": {}, "自己": {}, "这": {}, "啊": {}, "吗": {}, "什么": {}, "这个": {}, "那个": {},
	"主播": {}, "直播": {}, "弹幕": {},
}

// WordcloudBuilder 从一批文本里提取词频 Top-K。
// 计算量随文本量线性涨，调用方要负责把它放到计算池里跑。
type WordcloudBuilder struct {
	cut func(string) []string
}

// NewWordcloudBuilder 创建词云构建器，默认用 gse 分词。
func NewWordcloudBuilder() *WordcloudBuilder {
	b := &WordcloudBuilder{cut: fieldsCut}
	seg, err := gse.New()
	if err != nil {
		log.Printf("[Wordcloud] 加载分词词典失败，退化为空白切分: %v", err)
		return b
	}
	b.cut = func(text string) []string { return seg.Cut(text, true) }
	return b
}

// NewWordcloudBuilderWithCut 使用自定义切分函数（换分词器或测试注入用）。
func NewWordcloudBuilderWithCut(cut func(string) []string) *WordcloudBuilder {
	if cut == nil {
		cut = fieldsCut
	}
	return &WordcloudBuilder{cut: cut}
}

// Build 统计词频并返回前 topK 个词。
// 排序规则固定：频次降序，同频按词典序，保证结果可复现。
func (b *WordcloudBuilder) Build(texts []string, topK int) []message.WordItem {
	if topK <= 0 {
		topK = 50
	}

	counts := make(map[string]int)
	for _, text := range texts {
		for _, tok := range b.cut(text) {
			tok = strings.TrimSpace(tok)
			if !keepToken(tok) {
				continue
			}
			counts[tok]++
		}
	}

	items := make([]message.WordItem, 0, len(counts))
	for name, value := range counts {
		items = append(items, message.WordItem{Name: name, Value: value})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Value != items[j].Value {
			return items[i].Value > items[j].Value
		}
		return items[i].Name < items[j].Name
	})
	if len(items) > topK {
		items = items[:topK]
	}
	return items
}

// keepToken 过滤单字、纯标点和停用词。
func keepToken(tok string) bool {
	if tok == "" {
		return false
	}
	runes := []rune(tok)
	if len(runes) < 2 {
		return false
	}
	if _, ok := stopWords[tok]; ok {
		return false
	}
	for _, r := range runes {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

func fieldsCut(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	})
}
