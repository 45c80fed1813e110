package notion

import (
	"context"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/medahead/targeting-cli/internal/model"
)

// queryAll fetches all pages from a Notion database, handling pagination.
func queryAll(ctx context.Context, c Client, dbID string, filter *notionapi.DatabaseQueryRequest) ([]notionapi.Page, error) {
	var all []notionapi.Page

	req := &notionapi.DatabaseQueryRequest{}
	if filter != nil {
		req.Filter = filter.Filter
		req.Sorts = filter.Sorts
		req.PageSize = filter.PageSize
	}

	for {
		resp, err := c.QueryDatabase(ctx, dbID, req)
		if err != nil {
			return nil, eris.Wrap(err, "notion: query all pages")
		}
		all = append(all, resp.Results...)
		if !resp.HasMore {
			break
		}
		req = &notionapi.DatabaseQueryRequest{StartCursor: resp.NextCursor}
		if filter != nil {
			req.Filter = filter.Filter
			req.Sorts = filter.Sorts
			req.PageSize = filter.PageSize
		}
	}

	return all, nil
}

// queryPlanPages fetches the pages previously exported for a conference.
func queryPlanPages(ctx context.Context, c Client, dbID, conferenceID string) ([]notionapi.Page, error) {
	filter := &notionapi.DatabaseQueryRequest{
		Filter: notionapi.PropertyFilter{
			Property: "Conference",
			RichText: &notionapi.TextFilterCondition{
				Equals: conferenceID,
			},
		},
	}
	pages, err := queryAll(ctx, c, dbID, filter)
	if err != nil {
		return nil, eris.Wrap(err, "notion: query plan pages")
	}
	return pages, nil
}

// ExportPlan publishes a meeting plan to a Notion database. Pages from a
// previous export for the same conference are archived first, so the
// database always reflects the latest plan. Returns the number of pages
// created.
func ExportPlan(ctx context.Context, c Client, dbID, conferenceID string, suggestions []model.MeetingSuggestion) (int, error) {
	stale, err := queryPlanPages(ctx, c, dbID, conferenceID)
	if err != nil {
		return 0, eris.Wrap(err, "notion: export plan")
	}

	for _, page := range stale {
		_, err := c.UpdatePage(ctx, string(page.ID), &notionapi.PageUpdateRequest{
			Properties: notionapi.Properties{},
			Archived:   true,
		})
		if err != nil {
			return 0, eris.Wrap(err, "notion: archive stale plan page")
		}
	}
	if len(stale) > 0 {
		zap.L().Info("notion: archived stale plan pages",
			zap.String("conference_id", conferenceID),
			zap.Int("count", len(stale)))
	}

	created := 0
	for _, s := range suggestions {
		req := &notionapi.PageCreateRequest{
			Parent: notionapi.Parent{
				Type:       notionapi.ParentTypeDatabaseID,
				DatabaseID: notionapi.DatabaseID(dbID),
			},
			Properties: planPageProperties(conferenceID, s),
		}
		if _, err := c.CreatePage(ctx, req); err != nil {
			return created, eris.Wrapf(err, "notion: export suggestion for %s", s.ContactName)
		}
		created++
	}

	zap.L().Info("notion: exported meeting plan",
		zap.String("conference_id", conferenceID),
		zap.Int("pages", created))
	return created, nil
}

// planPageProperties maps a meeting suggestion onto Notion page properties.
func planPageProperties(conferenceID string, s model.MeetingSuggestion) notionapi.Properties {
	return notionapi.Properties{
		"Name": notionapi.TitleProperty{
			Title: richText(s.ContactName),
		},
		"Company": notionapi.RichTextProperty{
			RichText: richText(s.ContactCompany),
		},
		"Time": notionapi.RichTextProperty{
			RichText: richText(s.SuggestedTime),
		},
		"Priority": notionapi.SelectProperty{
			Select: notionapi.Option{Name: string(s.Priority)},
		},
		"Reason": notionapi.RichTextProperty{
			RichText: richText(s.Reason),
		},
		"Message": notionapi.RichTextProperty{
			RichText: richText(s.PersonalizedMessage),
		},
		"Conference": notionapi.RichTextProperty{
			RichText: richText(conferenceID),
		},
	}
}

func richText(s string) []notionapi.RichText {
	return []notionapi.RichText{
		{Text: &notionapi.Text{Content: s}},
	}
}
