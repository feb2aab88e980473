// Package feed renders live vehicle records as a GTFS-Realtime
// VehiclePositions feed.
package feed

import (
	"sort"
	"time"

	gtfs "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"bus-tracker/internal/tracking/domain"
)

const gtfsRealtimeVersion = "2.0"

// Build returns a full-dataset feed with one entity per vehicle that has a
// visible position. Entities are ordered by vehicle id.
func Build(records []domain.LocationRecord, now time.Time) *gtfs.FeedMessage {
	visible := make([]domain.LocationRecord, 0, len(records))
	for _, rec := range records {
		if rec.Visible() {
			visible = append(visible, rec)
		}
	}
	sort.Slice(visible, func(i, j int) bool { return visible[i].VehicleID < visible[j].VehicleID })

	msg := &gtfs.FeedMessage{
		Header: &gtfs.FeedHeader{
			GtfsRealtimeVersion: proto.String(gtfsRealtimeVersion),
			Incrementality:      gtfs.FeedHeader_FULL_DATASET.Enum(),
			Timestamp:           proto.Uint64(uint64(now.Unix())),
		},
	}

	for _, rec := range visible {
		s := rec.Sample
		vp := &gtfs.VehiclePosition{
			Trip: &gtfs.TripDescriptor{
				TripId: proto.String(rec.SessionID),
			},
			Vehicle: &gtfs.VehicleDescriptor{
				Id:    proto.String(rec.VehicleID),
				Label: proto.String(rec.VehicleID),
			},
			Position: &gtfs.Position{
				Latitude:  proto.Float32(float32(s.Latitude)),
				Longitude: proto.Float32(float32(s.Longitude)),
				Bearing:   proto.Float32(float32(s.Heading)),
				Speed:     proto.Float32(float32(s.Speed)),
			},
			Timestamp: proto.Uint64(uint64(s.CapturedAt.Unix())),
		}
		if rec.DriverLabel != "" {
			vp.Vehicle.Label = proto.String(rec.DriverLabel)
		}

		msg.Entity = append(msg.Entity, &gtfs.FeedEntity{
			Id:      proto.String(rec.VehicleID),
			Vehicle: vp,
		})
	}

	return msg
}

// Marshal encodes the feed as protobuf, or as protojson when asJSON is set.
func Marshal(msg *gtfs.FeedMessage, asJSON bool) ([]byte, string, error) {
	if asJSON {
		b, err := protojson.MarshalOptions{UseProtoNames: true}.Marshal(msg)
		return b, "application/json", err
	}
	b, err := proto.Marshal(msg)
	return b, "application/x-protobuf", err
}
