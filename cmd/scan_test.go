package cmd

import "testing"

func TestCheckScanParameters(t *testing.T) {
	restore := func() {
		scanXStep, scanYStep, scanLaserStep = 16, 16, 0
	}
	defer restore()

	for _, test := range []struct {
		name       string
		xStep      int
		yStep      int
		laserStep  int
		laserSweep bool
		wantErr    bool
	}{
		{"defaults", 16, 16, 0, false, false},
		{"zero x step", 0, 16, 0, false, true},
		{"zero y step", 16, 0, 0, false, true},
		{"negative x step", -1, 16, 0, false, true},
		{"laser sweep", 16, 16, 50, true, false},
		{"zero laser step", 16, 16, 0, true, true},
	} {
		scanXStep, scanYStep, scanLaserStep = test.xStep, test.yStep, test.laserStep
		err := checkScanParameters(test.laserSweep)
		if (err != nil) != test.wantErr {
			t.Errorf("%s: checkScanParameters() = %v, want error %v", test.name, err, test.wantErr)
		}
	}
}
