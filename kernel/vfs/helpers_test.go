package vfs_test

import "context"

func ctxBG() context.Context {
	return context.Background()
}
