package feed

import "fmt"

// Fixed labels carried into the ledger, kept byte-identical with
// ledgers written by earlier tooling.
const (
	labelVideoPrefix  = "投稿动态："
	labelImagePost    = "图文动态"
	labelTextPost     = "文字动态"
	labelRepostPrefix = "转发的动态链接："
	labelUnsupported  = "暂不支持的类型"
)

type Classifier struct{}

func NewClassifier() *Classifier {
	return &Classifier{}
}

// Classify maps a raw item to its normalized record. Total over all
// item types: unrecognized kinds become an Unsupported record that
// still carries the ids, so they are ledgered once and never
// reprocessed. A recognized kind with missing required fields is an
// error, never a half-populated record.
func (c *Classifier) Classify(item *Item) (Record, error) {
	rec := Record{
		ID:              item.IDStr,
		CommentTargetID: item.Basic.CommentIDStr,
		CommentType:     item.Basic.CommentType,
		RawType:         item.Type,
	}

	switch item.Type {
	case TypeVideo:
		archive, err := requireArchive(item)
		if err != nil {
			return Record{}, err
		}
		rec.ContentType = ContentVideo
		caption := ""
		if dyn := item.Modules.ModuleDynamic; dyn != nil && dyn.Desc != nil && dyn.Desc.Text != "" {
			caption = labelVideoPrefix + dyn.Desc.Text + "\n\n"
		}
		rec.Title = caption + archive.Title
		rec.Text = archive.Desc
		rec.ImagePaths = []string{archive.Cover}
		rec.VideoPageURL = "https:" + archive.JumpURL
		return rec, nil

	case TypeDraw:
		desc, err := requireDesc(item)
		if err != nil {
			return Record{}, err
		}
		rec.ContentType = ContentImagePost
		rec.Title = labelImagePost
		rec.Text = desc
		rec.ImagePaths = []string{}
		// A caption-only post has a nil major block; that is not an error.
		if dyn := item.Modules.ModuleDynamic; dyn.Major != nil {
			if dyn.Major.Draw == nil {
				return Record{}, fmt.Errorf("image post %s has a major block without draw items", item.IDStr)
			}
			for _, img := range dyn.Major.Draw.Items {
				rec.ImagePaths = append(rec.ImagePaths, img.Src)
			}
		}
		return rec, nil

	case TypeWord:
		desc, err := requireDesc(item)
		if err != nil {
			return Record{}, err
		}
		rec.ContentType = ContentTextPost
		rec.Title = labelTextPost
		rec.Text = desc
		return rec, nil

	case TypeForward:
		desc, err := requireDesc(item)
		if err != nil {
			return Record{}, err
		}
		if item.Orig == nil || item.Orig.IDStr == "" {
			return Record{}, fmt.Errorf("repost %s has no original item reference", item.IDStr)
		}
		rec.ContentType = ContentRepost
		rec.Title = labelRepostPrefix + item.Orig.IDStr
		rec.Text = desc
		return rec, nil

	default:
		rec.ContentType = ContentUnsupported
		rec.Text = labelUnsupported
		return rec, nil
	}
}

func requireArchive(item *Item) (*Archive, error) {
	dyn := item.Modules.ModuleDynamic
	if dyn == nil || dyn.Major == nil || dyn.Major.Archive == nil {
		return nil, fmt.Errorf("video item %s has no archive block", item.IDStr)
	}
	return dyn.Major.Archive, nil
}

func requireDesc(item *Item) (string, error) {
	dyn := item.Modules.ModuleDynamic
	if dyn == nil || dyn.Desc == nil {
		return "", fmt.Errorf("item %s (%s) has no description block", item.IDStr, item.Type)
	}
	return dyn.Desc.Text, nil
}
