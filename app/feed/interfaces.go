package feed

import (
	"context"

	"github.com/bupcache/bupcache/app/ledger"
)

type PageFetcher interface {
	Page(ctx context.Context, uid, offset string) (*PageResponse, error)
}

type LedgerStore interface {
	Contains(uid, id string) bool
	Append(uid string, e ledger.Entry) error
	Reload(uid string) error
	IsFirstRun(uid string) bool
	Size(uid string) int
}

type ImageFetcher interface {
	FetchImage(ctx context.Context, url, dest string) error
}

type VideoAcquirer interface {
	AcquireVideo(ctx context.Context, uid, pageURL string) error
}

type FileRelocator interface {
	Relocate(finishedPath, uid string)
}

type Commenter interface {
	Post(ctx context.Context, commentType int, targetID, message string) error
}

type SessionControl interface {
	Reinit() error
}
