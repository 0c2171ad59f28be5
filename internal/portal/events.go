package portal

import (
	"context"

	"schoolportal/internal/mapping"
	"schoolportal/internal/model"
	"schoolportal/internal/remote"
)

// ListEvents returns events in date order.
func (s *Service) ListEvents(ctx context.Context) ([]model.SchoolEvent, error) {
	rows, err := s.backend.Select(ctx, mapping.TableEvents, remote.Query{
		Order: []remote.Order{{Column: "date_time", Ascending: true}},
	})
	if err != nil {
		return nil, err
	}
	out := make([]model.SchoolEvent, 0, len(rows))
	for _, r := range rows {
		ev, err := mapping.EventFromRow(r, s.opts.Location)
		if err != nil {
			return nil, remote.Wrap("select", mapping.TableEvents, err)
		}
		out = append(out, ev)
	}
	return out, nil
}

func (s *Service) CreateEvent(ctx context.Context, e model.SchoolEvent) (model.SchoolEvent, error) {
	if err := check(e); err != nil {
		return model.SchoolEvent{}, err
	}
	if e.Status == "" {
		e.Status = model.StatusActive
	}
	e.ID = ""
	row, err := mapping.EventToRow(e)
	if err != nil {
		return model.SchoolEvent{}, invalid("date", err.Error())
	}
	rows, err := s.backend.Insert(ctx, mapping.TableEvents, row)
	if err != nil {
		return model.SchoolEvent{}, err
	}
	created, err := single(rows, "insert", mapping.TableEvents)
	if err != nil {
		return model.SchoolEvent{}, err
	}
	ev, err := mapping.EventFromRow(created, s.opts.Location)
	return ev, remote.Wrap("insert", mapping.TableEvents, err)
}

// UpdateEvent applies a partial update. Date and time must be changed
// together since they are stored as one value.
func (s *Service) UpdateEvent(ctx context.Context, id string, p mapping.Patch) (model.SchoolEvent, error) {
	if err := requireID(id); err != nil {
		return model.SchoolEvent{}, err
	}
	p = p.Defined()
	date, hasDate := p.Take("date")
	clock, hasTime := p.Take("time")
	if hasDate != hasTime {
		return model.SchoolEvent{}, invalid("time", "date and time must be changed together")
	}

	var ev model.SchoolEvent
	row, err := patchRow(p, mapping.EventColumns, &ev)
	if err != nil {
		return model.SchoolEvent{}, err
	}
	if err := present(p, check(ev)); err != nil {
		return model.SchoolEvent{}, err
	}
	if hasDate {
		d, _ := date.(string)
		t, _ := clock.(string)
		dt, err := mapping.CombineDateTime(d, t)
		if err != nil {
			return model.SchoolEvent{}, invalid("date", err.Error())
		}
		row["date_time"] = dt
	}

	updated, err := s.patch(ctx, mapping.TableEvents, id, row, remote.Query{})
	if err != nil {
		return model.SchoolEvent{}, err
	}
	out, err := mapping.EventFromRow(updated, s.opts.Location)
	return out, remote.Wrap("update", mapping.TableEvents, err)
}

func (s *Service) DeleteEvent(ctx context.Context, id string) error {
	if err := requireID(id); err != nil {
		return err
	}
	return s.backend.Delete(ctx, mapping.TableEvents, byID(id))
}
