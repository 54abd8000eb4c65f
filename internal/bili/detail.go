package bili

import (
	"context"
	"fmt"
	"strconv"
)

// DynamicDetail is the crawled content of one feed post.
type DynamicDetail struct {
	AuthorMid   int64
	AuthorName  string
	Text        string
	CommentOID  int64 // oid for the reply endpoints
	CommentType int   // type for the reply endpoints
	IsLottery   bool
	IsForward   bool
	IsVideo     bool
	VideoAid    int64
	VideoBvid   string
}

type dynamicDetailData struct {
	Item struct {
		Modules []struct {
			ModuleType   string `json:"module_type"`
			ModuleAuthor struct {
				User struct {
					Mid  int64  `json:"mid"`
					Name string `json:"name"`
				} `json:"user"`
			} `json:"module_author"`
			ModuleDesc struct {
				RichTextNodes []struct {
					Type     string `json:"type"`
					Text     string `json:"text"`
					OrigText string `json:"orig_text"`
				} `json:"rich_text_nodes"`
			} `json:"module_desc"`
			ModuleDynamic struct {
				Type       string `json:"type"`
				DynArchive struct {
					Aid  int64  `json:"aid"`
					Bvid string `json:"bvid"`
				} `json:"dyn_archive"`
			} `json:"module_dynamic"`
			ModuleStat struct {
				Comment struct {
					CommentID   int64 `json:"comment_id"`
					CommentType int   `json:"comment_type"`
				} `json:"comment"`
			} `json:"module_stat"`
		} `json:"modules"`
	} `json:"item"`
}

// FetchDynamicDetail crawls a feed post: text content, author, the
// comment target identifiers, and content-type flags.
func (c *Client) FetchDynamicDetail(ctx context.Context, dynamicID string) (*DynamicDetail, error) {
	var data dynamicDetailData
	params := map[string]string{"id": dynamicID}
	if err := c.get(ctx, urlDynamicDetail, params, false, &data); err != nil {
		return nil, fmt.Errorf("fetch dynamic %s: %w", dynamicID, err)
	}

	detail := &DynamicDetail{CommentType: 11} // feed-post default
	for _, module := range data.Item.Modules {
		switch module.ModuleType {
		case "MODULE_TYPE_AUTHOR":
			detail.AuthorMid = module.ModuleAuthor.User.Mid
			detail.AuthorName = module.ModuleAuthor.User.Name
		case "MODULE_TYPE_DESC":
			for _, node := range module.ModuleDesc.RichTextNodes {
				if node.Type == "RICH_TEXT_NODE_TYPE_LOTTERY" {
					detail.IsLottery = true
				}
				if node.Text != "" {
					detail.Text += node.Text
				} else {
					detail.Text += node.OrigText
				}
			}
		case "MODULE_TYPE_DYNAMIC":
			switch module.ModuleDynamic.Type {
			case "MDL_DYN_TYPE_ARCHIVE":
				detail.IsVideo = true
				detail.VideoAid = module.ModuleDynamic.DynArchive.Aid
				detail.VideoBvid = module.ModuleDynamic.DynArchive.Bvid
			case "MDL_DYN_TYPE_FORWARD":
				detail.IsForward = true
			}
		case "MODULE_TYPE_STAT":
			detail.CommentOID = module.ModuleStat.Comment.CommentID
			if module.ModuleStat.Comment.CommentType != 0 {
				detail.CommentType = module.ModuleStat.Comment.CommentType
			}
		}
	}
	return detail, nil
}

// VideoDetail is the crawled content of one video page.
type VideoDetail struct {
	Aid        int64
	Title      string
	Desc       string
	AuthorMid  int64
	AuthorName string
}

// Text renders the crawl text used for comment generation.
func (v *VideoDetail) Text() string {
	return "标题:" + v.Title + "\n简介:" + v.Desc
}

// FetchVideoDetail crawls a video page.
func (c *Client) FetchVideoDetail(ctx context.Context, bvid string) (*VideoDetail, error) {
	var data struct {
		Aid   int64  `json:"aid"`
		Title string `json:"title"`
		Desc  string `json:"desc"`
		Owner struct {
			Mid  int64  `json:"mid"`
			Name string `json:"name"`
		} `json:"owner"`
	}
	params := map[string]string{"bvid": bvid}
	if err := c.get(ctx, urlVideoDetail, params, false, &data); err != nil {
		return nil, fmt.Errorf("fetch video %s: %w", bvid, err)
	}
	return &VideoDetail{
		Aid:        data.Aid,
		Title:      data.Title,
		Desc:       data.Desc,
		AuthorMid:  data.Owner.Mid,
		AuthorName: data.Owner.Name,
	}, nil
}

// whisperURL builds the direct link for a private-message hit.
func whisperURL(talkerID int64) string {
	return "https://message.bilibili.com/#/whisper/mid" + strconv.FormatInt(talkerID, 10)
}
