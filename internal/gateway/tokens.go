package gateway

import (
	"log/slog"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// NewTiktokenCounter counts tokens with the cl100k_base encoding. The encoding
// is loaded on first use; if that fails every count is 0.
func NewTiktokenCounter(logger *slog.Logger) TokenCounter {
	var (
		once sync.Once
		tke  *tiktoken.Tiktoken
	)

	return func(text string) int {
		once.Do(func() {
			enc, err := tiktoken.GetEncoding("cl100k_base")
			if err != nil {
				logger.Error("Failed to get tiktoken encoding", "error", err)
				return
			}
			tke = enc
		})
		if tke == nil {
			return 0
		}
		return len(tke.Encode(text, nil, nil))
	}
}
