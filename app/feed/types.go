package feed

// Raw wire types mirroring the dynamic feed endpoint. Consumed
// read-only, one page at a time.

type PageResponse struct {
	Code    int      `json:"code"`
	Message string   `json:"message"`
	Data    PageData `json:"data"`
}

type PageData struct {
	HasMore bool   `json:"has_more"`
	Offset  string `json:"offset"`
	Items   []Item `json:"items"`
}

type Item struct {
	IDStr   string   `json:"id_str"`
	Type    string   `json:"type"`
	Basic   Basic    `json:"basic"`
	Modules Modules  `json:"modules"`
	Orig    *OrigRef `json:"orig"`
}

type Basic struct {
	CommentIDStr string `json:"comment_id_str"`
	CommentType  int    `json:"comment_type"`
}

type Modules struct {
	ModuleTag     *ModuleTag     `json:"module_tag"`
	ModuleDynamic *ModuleDynamic `json:"module_dynamic"`
}

type ModuleTag struct {
	Text string `json:"text"`
}

type ModuleDynamic struct {
	Desc  *Desc  `json:"desc"`
	Major *Major `json:"major"`
}

type Desc struct {
	Text string `json:"text"`
}

type Major struct {
	Archive *Archive `json:"archive"`
	Draw    *Draw    `json:"draw"`
}

type Archive struct {
	Title   string `json:"title"`
	Desc    string `json:"desc"`
	Cover   string `json:"cover"`
	JumpURL string `json:"jump_url"`
}

type Draw struct {
	Items []DrawItem `json:"items"`
}

type DrawItem struct {
	Src string `json:"src"`
}

type OrigRef struct {
	IDStr string `json:"id_str"`
}

// pinnedTag is the module tag the server puts on the entry it always
// returns first regardless of recency.
const pinnedTag = "置顶"

func (it *Item) IsPinned() bool {
	return it.Modules.ModuleTag != nil && it.Modules.ModuleTag.Text == pinnedTag
}

// Dynamic item type markers used by the feed.
const (
	TypeVideo   = "DYNAMIC_TYPE_AV"
	TypeDraw    = "DYNAMIC_TYPE_DRAW"
	TypeWord    = "DYNAMIC_TYPE_WORD"
	TypeForward = "DYNAMIC_TYPE_FORWARD"
)

type ContentType string

const (
	ContentVideo       ContentType = "video"
	ContentImagePost   ContentType = "image_post"
	ContentTextPost    ContentType = "text_post"
	ContentRepost      ContentType = "repost"
	ContentUnsupported ContentType = "unsupported"
)

// Record is the normalized projection of one raw feed item. Immutable
// after classification.
type Record struct {
	ID              string
	CommentTargetID string
	CommentType     int
	ContentType     ContentType
	RawType         string
	Title           string
	Text            string
	ImagePaths      []string
	VideoPageURL    string
}
