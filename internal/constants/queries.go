package constants

const (
	SelectFlightIdentities = `
	SELECT record_number, crew_id, occurred_on, occurred_at
	FROM flight_records
	`

	// bindvars are rebound per driver
	CountFlightNumber = `
	SELECT COUNT(1) FROM flight_records
	WHERE crew_id = ? AND record_number = ?
	`
)
