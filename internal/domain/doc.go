// Package domain models satellite fire detections and the proximity
// features computed over them.
//
// # Data Source
//
// Detections are MODIS/VIIRS active-fire points exported from the
// detections database as one row per detection: latitude, longitude,
// detection time and a label saying whether the point was later matched to
// a mapped forest-fire perimeter. Perimeters are posted after business
// hours, so a detection's label is not known on the day it is made.
//
// # Sequence Keys
//
// A detection is identified by (latitude, longitude, timestamp) with the
// timestamp truncated to whole seconds. Upstream exports contain repeated
// rows for the same key; they are collapsed once at ingestion by [Dedupe],
// and [NewDataset] refuses duplicates so later stages can rely on keys
// being unique.
//
// # Windows
//
// A [Window] of N days admits events from N calendar days before the
// event up to the event itself. N = 0 admits events since local midnight
// of the event's day. Windows longer than a week are long range:
//
//	0..7 days    day-scale activity around the detection
//	365, 730...  year-scale fire history of the location
//
// # Feature Columns
//
// Each window contributes two columns:
//
//	all_nearby_count_<days>       detections inside the box and window,
//	                              including the detection itself
//	nearby_positive_count_<days>  confirmed fires inside the box and window,
//	                              excluding anything from the same day
//
// A cell is a non-negative integer or undefined ([Undefined]). Undefined
// marks long-range windows whose lookback starts before the first
// detection in the dataset ([ErrInsufficientHistory]); such cells are never
// reported as zero.
package domain
