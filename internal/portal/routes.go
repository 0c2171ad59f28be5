package portal

import (
	"context"
	"encoding/json"

	"schoolportal/internal/mapping"
	"schoolportal/internal/model"
	"schoolportal/internal/remote"
)

var routeQuery = remote.Query{
	Embed: []remote.Embed{{
		Alias:      mapping.StopsEmbed,
		Table:      mapping.TableStops,
		ForeignKey: "route_id",
		OrderBy:    "stop_time",
	}},
}

// ListRoutes returns every route with its stops joined in one call.
func (s *Service) ListRoutes(ctx context.Context) ([]model.TransportRoute, error) {
	q := routeQuery
	q.Order = []remote.Order{{Column: "route_number", Ascending: true}}
	rows, err := s.backend.Select(ctx, mapping.TableRoutes, q)
	if err != nil {
		return nil, err
	}
	out := make([]model.TransportRoute, 0, len(rows))
	for _, r := range rows {
		out = append(out, mapping.RouteFromRow(r))
	}
	return out, nil
}

func (s *Service) getRoute(ctx context.Context, id string) (model.TransportRoute, error) {
	q := routeQuery
	q.Filters = []remote.Filter{byID(id)}
	row, err := remote.SelectOne(ctx, s.backend, mapping.TableRoutes, q)
	if err != nil {
		return model.TransportRoute{}, err
	}
	return mapping.RouteFromRow(row), nil
}

// CreateRoute inserts the route and then its stops. The route is removed
// again when the stops cannot be inserted.
func (s *Service) CreateRoute(ctx context.Context, r model.TransportRoute) (model.TransportRoute, error) {
	if err := check(r); err != nil {
		return model.TransportRoute{}, err
	}
	if r.Status == "" {
		r.Status = model.StatusActive
	}
	r.ID = ""

	var id string
	_, err := s.newSaga("create route",
		Step{
			Name: "insert_route",
			Run: func(ctx context.Context) error {
				rows, err := s.backend.Insert(ctx, mapping.TableRoutes, mapping.RouteToRow(r))
				if err != nil {
					return err
				}
				row, err := single(rows, "insert", mapping.TableRoutes)
				if err != nil {
					return err
				}
				id = mapping.String(row, "id")
				return nil
			},
			Compensate: func(ctx context.Context) error {
				return s.backend.Delete(ctx, mapping.TableRoutes, byID(id))
			},
		},
		s.insertStopsStep(&id, r.Stops),
	).run(ctx)
	if err != nil {
		return model.TransportRoute{}, err
	}
	return s.getRoute(ctx, id)
}

// UpdateRoute applies a partial update. A "stops" key replaces the whole
// stop list: every existing stop is deleted and the given ones inserted.
func (s *Service) UpdateRoute(ctx context.Context, id string, p mapping.Patch) (model.TransportRoute, error) {
	if err := requireID(id); err != nil {
		return model.TransportRoute{}, err
	}
	p = p.Defined()
	rawStops, replaceStops := p.Take("stops")

	var rt model.TransportRoute
	row, err := patchRow(p, mapping.RouteColumns, &rt)
	if err != nil {
		return model.TransportRoute{}, err
	}
	if err := present(p, check(rt)); err != nil {
		return model.TransportRoute{}, err
	}
	var stops []model.BusStop
	if replaceStops {
		if stops, err = decodeStops(rawStops); err != nil {
			return model.TransportRoute{}, err
		}
	}

	steps := []Step{{
		Name: "update_route",
		Run: func(ctx context.Context) error {
			_, err := s.patch(ctx, mapping.TableRoutes, id, row, remote.Query{})
			return err
		},
	}}
	if replaceStops {
		steps = append(steps,
			Step{
				Name: "delete_stops",
				Run: func(ctx context.Context) error {
					return s.backend.Delete(ctx, mapping.TableStops, remote.Eq("route_id", id))
				},
			},
			s.insertStopsStep(&id, stops),
		)
	}
	if _, err := s.newSaga("update route", steps...).run(ctx); err != nil {
		return model.TransportRoute{}, err
	}
	return s.getRoute(ctx, id)
}

// DeleteRoute removes the owned stops, then the route.
func (s *Service) DeleteRoute(ctx context.Context, id string) error {
	if err := requireID(id); err != nil {
		return err
	}
	_, err := s.newSaga("delete route",
		Step{
			Name: "delete_stops",
			Run: func(ctx context.Context) error {
				return s.backend.Delete(ctx, mapping.TableStops, remote.Eq("route_id", id))
			},
		},
		Step{
			Name: "delete_route",
			Run: func(ctx context.Context) error {
				return s.backend.Delete(ctx, mapping.TableRoutes, byID(id))
			},
		},
	).run(ctx)
	return err
}

func (s *Service) insertStopsStep(routeID *string, stops []model.BusStop) Step {
	return Step{
		Name: "insert_stops",
		Run: func(ctx context.Context) error {
			if len(stops) == 0 {
				return nil
			}
			_, err := s.backend.Insert(ctx, mapping.TableStops, mapping.StopRows(*routeID, stops)...)
			return err
		},
	}
}

func decodeStops(v any) ([]model.BusStop, error) {
	if stops, ok := v.([]model.BusStop); ok {
		return stops, checkStops(stops)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, invalid("stops", "stops must be a list")
	}
	var stops []model.BusStop
	if err := json.Unmarshal(raw, &stops); err != nil {
		return nil, invalid("stops", "stops must be a list of {name, time}")
	}
	return stops, checkStops(stops)
}

type stopList struct {
	Stops []model.BusStop `json:"stops" validate:"dive"`
}

func checkStops(stops []model.BusStop) error {
	return check(stopList{Stops: stops})
}
