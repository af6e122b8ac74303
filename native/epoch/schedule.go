package epoch

const (
	// WeekDuration is the length of a reward week in seconds.
	WeekDuration uint64 = 604_800
	// ProgramWeeks is the number of reward weeks in the airdrop program.
	ProgramWeeks uint64 = 36
	// DonutUnit is one whole reward token expressed in base units (9 decimals).
	DonutUnit uint64 = 1_000_000_000
)

// weeklySchedule holds the fixed distribution per week in whole tokens. Index 0
// is week 1.
var weeklySchedule = [ProgramWeeks]uint64{
	// weeks 1-4
	1_500_000, 1_450_000, 1_400_000, 1_350_000,
	// weeks 5-8
	1_300_000, 1_250_000, 1_200_000, 1_150_000,
	// weeks 9-12
	1_100_000, 1_050_000, 1_000_000, 950_000,
	// weeks 13-16
	900_000, 860_000, 820_000, 780_000,
	// weeks 17-20
	740_000, 700_000, 660_000, 620_000,
	// weeks 21-24
	580_000, 550_000, 520_000, 490_000,
	// weeks 25-28
	460_000, 430_000, 400_000, 375_000,
	// weeks 29-32
	350_000, 325_000, 300_000, 275_000,
	// weeks 33-36
	250_000, 225_000, 200_000, 175_000,
}

// ScheduleFor returns the reward distributed for week in base units. Weeks
// outside 1..ProgramWeeks yield zero.
func ScheduleFor(week uint64) uint64 {
	if week == 0 || week > ProgramWeeks {
		return 0
	}
	return weeklySchedule[week-1] * DonutUnit
}

// TotalScheduled returns the sum of every scheduled week in base units.
func TotalScheduled() uint64 {
	var total uint64
	for week := uint64(1); week <= ProgramWeeks; week++ {
		total += ScheduleFor(week)
	}
	return total
}
