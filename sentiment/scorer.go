package sentiment

import (
	"log"
	"math"
	"strings"

	"github.com/go-ego/gse"

	"github.com/cydxin/live-sdk/message"
)

// 内置情感词表。弹幕文本短、口语化，词表覆盖高频表达即可；
// 需要更强的模型时上层可以换 Scorer。
var defaultPositive = []string{
	"好", "棒", "赞", "强", "帅", "美", "爱", "喜欢", "好看", "好听",
	"厉害", "牛", "牛逼", "666", "233", "哈哈", "哈哈哈", "笑死", "可爱", "加油",
	"支持", "好玩", "有趣", "精彩", "完美", "优秀", "开心", "快乐", "感谢", "谢谢",
	"awsl", "yyds", "爱了", "太强", "神", "绝了", "泪目", "好耶", "nice", "good",
}

var defaultNegative = []string{
	"差", "烂", "垃圾", "难看", "难听", "无聊", "讨厌", "恶心", "傻", "蠢",
	"菜", "拉胯", "败", "气", "生气", "愤怒", "失望", "难受", "难过", "哭",
	"卑鄙", "可恶", "滚", "烦", "吐了", "下饭", "寄", "凉了", "完蛋", "bad",
}

// 否定前缀，命中时翻转紧跟的情感词
var negations = map[string]struct{}{
	"不": {}, "没": {}, "别": {}, "不是": {}, "没有": {},
}

// Scorer 情感打分器：content -> [0,1] 分数。纯函数，可并发调用。
// SnowNLP 的角色由"分词 + 情感词表"承担，无法判断时回 0.5（中性）。
type Scorer struct {
	seg      *gse.Segmenter
	positive map[string]struct{}
	negative map[string]struct{}
}

// NewScorer 创建打分器，加载默认分词词典。
func NewScorer() *Scorer {
	s := newLexiconScorer(defaultPositive, defaultNegative)
	seg, err := gse.New()
	if err != nil {
		// 词典加载失败就退化到子串匹配，打分仍然可用
		log.Printf("[Sentiment] 加载分词词典失败，退化为子串匹配: %v", err)
		return s
	}
	s.seg = &seg
	return s
}

// NewScorerWithLexicon 使用自定义词表（不加载分词词典，按子串匹配）。
func NewScorerWithLexicon(positive, negative []string) *Scorer {
	return newLexiconScorer(positive, negative)
}

func newLexiconScorer(positive, negative []string) *Scorer {
	s := &Scorer{
		positive: make(map[string]struct{}, len(positive)),
		negative: make(map[string]struct{}, len(negative)),
	}
	for _, w := range positive {
		s.positive[w] = struct{}{}
	}
	for _, w := range negative {
		s.negative[w] = struct{}{}
	}
	return s
}

// Score 返回 [0,1] 情感分数，越大越正面。空文本或无命中返回 0.5。
func (s *Scorer) Score(content string) float64 {
	content = strings.TrimSpace(content)
	if content == "" {
		return 0.5
	}

	var pos, neg int
	if s.seg != nil {
		pos, neg = s.countTokens(s.seg.Cut(content, true))
	} else {
		pos, neg = s.countSubstrings(content)
	}

	if pos == 0 && neg == 0 {
		return 0.5
	}
	// +1 平滑，避免单词命中就打到 0 或 1
	score := 0.5 + 0.5*float64(pos-neg)/float64(pos+neg+1)
	return math.Max(0, math.Min(1, score))
}

// ScoreLabel 打分并按阈值映射标签。
func (s *Scorer) ScoreLabel(content string) (float64, string) {
	score := s.Score(content)
	return score, message.LabelFor(score)
}

func (s *Scorer) countTokens(tokens []string) (pos, neg int) {
	negate := false
	for _, tok := range tokens {
		tok = strings.TrimSpace(strings.ToLower(tok))
		if tok == "" {
			continue
		}
		if _, ok := negations[tok]; ok {
			negate = true
			continue
		}
		_, isPos := s.positive[tok]
		_, isNeg := s.negative[tok]
		if negate {
			isPos, isNeg = isNeg, isPos
		}
		if isPos {
			pos++
		}
		if isNeg {
			neg++
		}
		negate = false
	}
	return pos, neg
}

func (s *Scorer) countSubstrings(content string) (pos, neg int) {
	lower := strings.ToLower(content)
	for w := range s.positive {
		pos += strings.Count(lower, w)
	}
	for w := range s.negative {
		neg += strings.Count(lower, w)
	}
	return pos, neg
}
