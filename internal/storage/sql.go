package storage

import (
	_ "embed"
)

const (
	insertSessionSQL = `
INSERT INTO sessions (id,
                      start_time,
                      antenna_latitude,
                      antenna_longitude,
                      antenna_elevation,
                      mission_id,
                      radius,
                      point_count,
                      instrument,
                      config)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	selectSessionColumns = `
SELECT
    id,
    start_time,
    antenna_latitude,
    antenna_longitude,
    antenna_elevation,
    mission_id,
    radius,
    point_count,
    instrument,
    config
FROM sessions`

	selectSessionSQL = selectSessionColumns + `
WHERE
    id = ?`

	selectSessionsSQL = selectSessionColumns + `
ORDER BY start_time`

	updateSessionMissionSQL = `
UPDATE sessions
SET mission_id = ?
WHERE id = ?`

	insertWaypointSQL = `
INSERT INTO waypoints (mission_id,
                       session_id,
                       seq,
                       latitude,
                       longitude,
                       altitude,
                       corner_radius)
VALUES `

	selectWaypointsSQL = `
SELECT
    latitude,
    longitude,
    altitude,
    corner_radius
FROM waypoints
WHERE
    mission_id = ?
ORDER BY seq`

	insertTelemetrySQL = `
INSERT INTO telemetry (session_id,
                       timestamp,
                       latitude,
                       longitude,
                       altitude,
                       relative_altitude,
                       roll,
                       pitch,
                       yaw,
                       ground_speed,
                       ground_course,
                       radio_rssi,
                       mission_seq)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	insertMeasurementSQL = `
INSERT INTO measurements (session_id,
                          timestamp,
                          magnitude,
                          telemetry_id)
VALUES `

	selectMeasurementsSQL = `
SELECT
    m.timestamp,
    m.magnitude,
    t.id,
    t.timestamp,
    t.latitude,
    t.longitude,
    t.altitude,
    t.relative_altitude,
    t.roll,
    t.pitch,
    t.yaw,
    t.ground_speed,
    t.ground_course,
    t.radio_rssi,
    t.mission_seq
FROM measurements m
         LEFT JOIN telemetry t ON t.id = m.telemetry_id
WHERE
    m.session_id = ?
  AND (? IS NULL OR m.timestamp >= ?)
  AND (? IS NULL OR m.timestamp <= ?)
ORDER BY m.timestamp, m.id`
)

var (
	//go:embed schema.sql
	initSchemaSQL string

	//go:embed indexes.sql
	initIndexesSQL string
)
