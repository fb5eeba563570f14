package anthropic

// BuildCachedSystemBlocks wraps a system prompt in a single block with a
// prompt-cache breakpoint. The enhancer's system prompt is identical for
// every word, so repeated calls read it from the cache.
func BuildCachedSystemBlocks(text string) []SystemBlock {
	return []SystemBlock{
		{
			Text: text,
			CacheControl: &CacheControl{
				TTL: "1h",
			},
		},
	}
}
