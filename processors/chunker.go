package processors

import (
	"doubtDesk/core"
)

// DefaultWordBudget is the soft per-chunk word ceiling when config supplies
// nothing.
const DefaultWordBudget = 200

// MergeBlocks greedily folds consecutive caption blocks into merged chunks.
// A block joins the running chunk while the running word count plus the
// block's word count stays within targetWords; otherwise it starts a new
// chunk. The budget is only enforced against the next block, so a single
// oversized block still lands whole in its own chunk; blocks are never
// split. Pure function of its inputs.
func MergeBlocks(blocks []core.CaptionBlock, targetWords int) []core.MergedChunk {
	if targetWords <= 0 {
		targetWords = DefaultWordBudget
	}

	var chunks []core.MergedChunk
	var current *core.MergedChunk
	currentWords := 0

	for _, block := range blocks {
		blockWords := core.WordCount(block.Content)

		switch {
		case current == nil:
			current = &core.MergedChunk{Start: block.Start, End: block.End, Content: block.Content}
			currentWords = blockWords
		case currentWords+blockWords <= targetWords:
			current.End = block.End
			current.Content += " " + block.Content
			currentWords += blockWords
		default:
			chunks = append(chunks, *current)
			current = &core.MergedChunk{Start: block.Start, End: block.End, Content: block.Content}
			currentWords = blockWords
		}
	}

	if current != nil {
		chunks = append(chunks, *current)
	}
	return chunks
}
