package portal

import (
	"context"

	"schoolportal/internal/mapping"
	"schoolportal/internal/model"
	"schoolportal/internal/remote"
)

// ListAnnouncements returns announcements newest first.
func (s *Service) ListAnnouncements(ctx context.Context) ([]model.Announcement, error) {
	rows, err := s.backend.Select(ctx, mapping.TableAnnouncements, remote.Query{
		Order: []remote.Order{{Column: "date", Ascending: false}},
	})
	if err != nil {
		return nil, err
	}
	out := make([]model.Announcement, 0, len(rows))
	for _, r := range rows {
		out = append(out, mapping.AnnouncementFromRow(r))
	}
	return out, nil
}

// CreateAnnouncement stamps today's date when none is given.
func (s *Service) CreateAnnouncement(ctx context.Context, a model.Announcement) (model.Announcement, error) {
	if a.Date == "" {
		a.Date = s.today()
	}
	if err := check(a); err != nil {
		return model.Announcement{}, err
	}
	a.ID = ""
	rows, err := s.backend.Insert(ctx, mapping.TableAnnouncements, mapping.AnnouncementToRow(a))
	if err != nil {
		return model.Announcement{}, err
	}
	row, err := single(rows, "insert", mapping.TableAnnouncements)
	if err != nil {
		return model.Announcement{}, err
	}
	return mapping.AnnouncementFromRow(row), nil
}

// UpdateAnnouncement applies a partial update.
func (s *Service) UpdateAnnouncement(ctx context.Context, id string, p mapping.Patch) (model.Announcement, error) {
	if err := requireID(id); err != nil {
		return model.Announcement{}, err
	}
	p = p.Defined()
	var a model.Announcement
	row, err := patchRow(p, mapping.AnnouncementColumns, &a)
	if err != nil {
		return model.Announcement{}, err
	}
	if err := present(p, check(a)); err != nil {
		return model.Announcement{}, err
	}
	updated, err := s.patch(ctx, mapping.TableAnnouncements, id, row, remote.Query{})
	if err != nil {
		return model.Announcement{}, err
	}
	return mapping.AnnouncementFromRow(updated), nil
}

func (s *Service) DeleteAnnouncement(ctx context.Context, id string) error {
	if err := requireID(id); err != nil {
		return err
	}
	return s.backend.Delete(ctx, mapping.TableAnnouncements, byID(id))
}

// patch writes row to the record id and returns the record as read back with
// q. An empty row only reads.
func (s *Service) patch(ctx context.Context, table, id string, row remote.Row, q remote.Query) (remote.Row, error) {
	if len(row) > 0 {
		rows, err := s.backend.Update(ctx, table, row, byID(id))
		if err != nil {
			return nil, err
		}
		if _, err := single(rows, "update", table); err != nil {
			return nil, err
		}
		if len(q.Embed) == 0 {
			return rows[0], nil
		}
	}
	q.Filters = append(q.Filters, byID(id))
	return remote.SelectOne(ctx, s.backend, table, q)
}
