package domain

// Roster survey columns. The registration export uses the full question text
// as the header, including the trailing space on the 3200m question.
const (
	GradeField = "What grade are you in? (2023-2024 School Year)"

	PR400Field  = "What is your personal best for the 400m. Please give honest and verifiable seed times from the last calendar year. Indoor times do count."
	PR800Field  = "What is your personal best for the 800m?  Please give honest and verifiable seed times from the last calendar year. Indoor times do count."
	PRMileField = "What is your personal best for the mile. Please give honest and verifiable seed times from the last calendar year. Indoor times do count."
	PR3200Field = "What is your personal best for the 3200m. Please give honest and verifiable seed times from the last calendar year. Indoor times do count. "

	Altitude800Field  = "If your personal best time that you submitted for the 800m was run at altitude, please list the elevation of that town/ city. If your PR is run at sea level, leave this question blank."
	AltitudeMileField = "If your personal best time that you submitted for the mile was run at altitude, please list the elevation of that town/ city. If your PR is run at sea level, leave this question blank."
	Altitude3200Field = "If your personal best time that you submitted for the 3200m was run at altitude, please list the elevation of that town/ city. If your PR is run at sea level, leave this question blank."
)

// Discipline groups events that share a seed-time column and a conversion
// distance.
type Discipline struct {
	Name string
	// Marker is matched as a substring of the event label.
	Marker string
	// DistanceFactor is the race distance in miles, as sent to the oracle.
	DistanceFactor string
	// PRField and AltitudeField are roster columns. AltitudeField is empty
	// when the survey never asks for an elevation.
	PRField       string
	AltitudeField string
	// TimeColumn is the display header of PRField after renaming. Empty means
	// the discipline has no seed-time column and its sheets keep roster order.
	TimeColumn string
}

var (
	Discipline800m = Discipline{
		Name: "800m", Marker: "800m", DistanceFactor: "0.497097",
		PRField: PR800Field, AltitudeField: Altitude800Field, TimeColumn: "800m",
	}
	DisciplineMile = Discipline{
		Name: "Mile", Marker: "Mile", DistanceFactor: "1",
		PRField: PRMileField, AltitudeField: AltitudeMileField, TimeColumn: "Mile",
	}
	Discipline3200m = Discipline{
		Name: "3200m", Marker: "3200m", DistanceFactor: "1.988388",
		PRField: PR3200Field, AltitudeField: Altitude3200Field, TimeColumn: "3200m",
	}
	Discipline400m = Discipline{
		Name: "400m", Marker: "400m", DistanceFactor: "0.248548",
		PRField: PR400Field, TimeColumn: "400m",
	}
	// Steeplechase divisions run different distances and the survey asks for
	// neither a seed time nor an elevation, so they are never converted.
	DisciplineSteeplechase = Discipline{Name: "Steeplechase", Marker: "Steeplechase"}
)

// Disciplines in classification precedence order. A label carrying several
// markers resolves to the first one listed here.
var Disciplines = []Discipline{
	Discipline800m,
	DisciplineMile,
	Discipline3200m,
	Discipline400m,
	DisciplineSteeplechase,
}

// EventCategory is one competition division as it appears in the roster.
type EventCategory struct {
	Label      string // long-form Event value
	SheetName  string
	Discipline Discipline
}

// Categories lists every division in published sheet order.
var Categories = []EventCategory{
	{Label: "RunningLane Track Championships 3200m Run (Girls)", SheetName: "3200m Girls", Discipline: Discipline3200m},
	{Label: "RunningLane Track Championships 3200m Run (Boys)", SheetName: "3200m Boys", Discipline: Discipline3200m},
	{Label: "RunningLane Track Championships Mile Run (Girls)", SheetName: "Mile Girls", Discipline: DisciplineMile},
	{Label: "RunningLane Track Championships Mile Run (Boys)", SheetName: "Mile Boys", Discipline: DisciplineMile},
	{Label: "RunningLane Track Championships 800m Run (Girls)", SheetName: "800m Girls", Discipline: Discipline800m},
	{Label: "RunningLane Track Championships 800m Run (Boys)", SheetName: "800m Boys", Discipline: Discipline800m},
	{Label: "RunningLane Track Championships 400m Run (Girls)", SheetName: "400m Girls", Discipline: Discipline400m},
	{Label: "RunningLane Track Championships 400m Run (Boys)", SheetName: "400m Boys", Discipline: Discipline400m},
	{Label: "RunningLane Track Championships 2000M Steeplechase Run (Girls)", SheetName: "Girls 2000m Steeplechase", Discipline: DisciplineSteeplechase},
	{Label: "RunningLane Track Championships 2000M Steeplechase Run (Boys)", SheetName: "Boys 2000m Steeplechase", Discipline: DisciplineSteeplechase},
	{Label: "3200m OPEN/YOUTH", SheetName: "3200m Open", Discipline: Discipline3200m},
	{Label: "Mile OPEN/YOUTH", SheetName: "Mile Open", Discipline: DisciplineMile},
	{Label: "800m OPEN/YOUTH", SheetName: "800m Open", Discipline: Discipline800m},
	{Label: "400m OPEN/YOUTH", SheetName: "400m Open", Discipline: Discipline400m},
	{Label: "3000m Steeplechase OPEN/YOUTH", SheetName: "3000m Steeplechase Open", Discipline: DisciplineSteeplechase},
}

// HeaderMapping shortens survey headers for the published sheets.
var HeaderMapping = map[string]string{
	GradeField:  "Grade",
	PR400Field:  "400m",
	PR800Field:  "800m",
	PRMileField: "Mile",
	PR3200Field: "3200m",
}

// AltitudeFields returns every altitude column in the survey.
func AltitudeFields() []string {
	var out []string
	for _, d := range Disciplines {
		if d.AltitudeField != "" {
			out = append(out, d.AltitudeField)
		}
	}
	return out
}

// TimeColumns returns every display time column, in discipline order.
func TimeColumns() []string {
	var out []string
	for _, d := range Disciplines {
		if d.TimeColumn != "" {
			out = append(out, d.TimeColumn)
		}
	}
	return out
}
