package dto

// SeedReport counts the demo records created by a seeding run. Records that
// already existed are left alone and not counted.
type SeedReport struct {
	Users     int `json:"users"`
	Courses   int `json:"courses"`
	Groups    int `json:"groups"`
	Homeworks int `json:"homeworks"`
}
