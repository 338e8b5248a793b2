package stats

import (
	"strings"
	"testing"
)

// 测试里固定用空白切分，不碰分词词典
func testBuilder() *WordcloudBuilder {
	return &WordcloudBuilder{cut: func(text string) []string {
		return strings.Fields(text)
	}}
}

func TestWordcloud_CountAndOrder(t *testing.T) {
	b := testBuilder()
	items := b.Build([]string{
		"主播 唱歌 好听",
		"唱歌 好听 好听",
		"跳舞 唱歌",
	}, 10)

	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d: %v", len(items), items)
	}
	// 好听=3 唱歌=3 跳舞=1，同频按词典序
	if items[0].Value != 3 || items[1].Value != 3 || items[2].Value != 1 {
		t.Fatalf("unexpected counts: %v", items)
	}
	if items[0].Name >= items[1].Name {
		t.Fatalf("expected lexicographic tie-break, got %v", items)
	}
	if items[2].Name != "跳舞" {
		t.Fatalf("expected 跳舞 last, got %v", items)
	}
}

func TestWordcloud_FiltersStopwordsAndShortTokens(t *testing.T) {
	b := testBuilder()
	items := b.Build([]string{"主播 的 了 好 精彩表演"}, 10)

	// "主播/的/了" 是停用词，"好" 单字被滤掉
	if len(items) != 1 || items[0].Name != "精彩表演" {
		t.Fatalf("unexpected items: %v", items)
	}
}

func TestWordcloud_TopKTrim(t *testing.T) {
	b := testBuilder()
	items := b.Build([]string{"aa bb cc dd ee"}, 2)
	if len(items) != 2 {
		t.Fatalf("expected topK=2, got %d", len(items))
	}
}

func TestWordcloud_EmptyInput(t *testing.T) {
	b := testBuilder()
	if items := b.Build(nil, 10); len(items) != 0 {
		t.Fatalf("expected empty result, got %v", items)
	}
}

func TestWordcloud_PunctuationOnlyTokens(t *testing.T) {
	b := testBuilder()
	if items := b.Build([]string{"!!! ??? ..."}, 10); len(items) != 0 {
		t.Fatalf("expected punctuation filtered, got %v", items)
	}
}
