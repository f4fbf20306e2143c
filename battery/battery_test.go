package battery

import "testing"

var parseLevelTests = []struct {
	name    string
	data    []byte
	want    int
	wantErr bool
}{
	{name: "empty", data: nil, wantErr: true},
	{name: "zero", data: []byte{0}, want: 0},
	{name: "half", data: []byte{50}, want: 50},
	{name: "full", data: []byte{100}, want: 100},
	{name: "trailing", data: []byte{87, 0xff}, want: 87},
	{name: "out_of_range", data: []byte{101}, wantErr: true},
}

func TestParseLevel(t *testing.T) {
	for _, test := range parseLevelTests {
		t.Run(test.name, func(t *testing.T) {
			got, err := ParseLevel(test.data)
			if (err != nil) != test.wantErr {
				t.Fatalf("unexpected error: got:%v want error:%t", err, test.wantErr)
			}
			if got != test.want {
				t.Errorf("unexpected level: got:%d want:%d", got, test.want)
			}
		})
	}
}
