package services

import (
	"context"
	"sync"
)

// forEachGroup グループごとに fn を最大 workers 並列で実行する。
// 結果は fn 側でグループのインデックスに書き込むため、完了順序に依存しない。
// 最初に発生したエラーを返し、以降の未着手グループは実行しない。
func forEachGroup(ctx context.Context, groups []ProductGroup, workers int, fn func(i int, g ProductGroup) error) error {
	if workers <= 1 || len(groups) <= 1 {
		for i, g := range groups {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := fn(i, g); err != nil {
				return err
			}
		}
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	sem := make(chan struct{}, workers)

	for i, g := range groups {
		select {
		case <-ctx.Done():
		case sem <- struct{}{}:
		}
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		go func(index int, group ProductGroup) {
			defer wg.Done()
			defer func() { <-sem }()
			if err := fn(index, group); err != nil {
				once.Do(func() {
					firstErr = err
					cancel()
				})
			}
		}(i, g)
	}
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}
