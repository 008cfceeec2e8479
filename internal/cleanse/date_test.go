package cleanse

import (
	"errors"
	"testing"
	"time"

	"dealerpulse/internal/frame"
)

func TestParseDate_Formats(t *testing.T) {
	t.Parallel()

	want := time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC)
	cases := []frame.Value{
		frame.String("2024-03-05"),
		frame.String("2024-3-5"),
		frame.String("2024/03/05"),
		frame.String("2024.3.5"),
		frame.String("2024年3月5日"),
		frame.String("20240305"),
		frame.String("2024-03-05 14:30:00"),
		frame.String("2024-03-05T14:30:00Z"),
		frame.DateYMD(2024, time.March, 5),
	}
	for _, v := range cases {
		got, ok := ParseDate(v)
		if !ok || !got.Equal(want) {
			t.Fatalf("%#v: want %s, got %s ok=%v", v, want, got, ok)
		}
	}
}

func TestParseDate_ExcelSerial(t *testing.T) {
	t.Parallel()

	// 45356 = 2024-03-05
	got, ok := ParseDate(frame.Number(45356))
	if !ok {
		t.Fatalf("serial parse failed")
	}
	want := time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("serial 45356 want %s, got %s", want, got)
	}

	// 序列日字符串同样可解析
	got, ok = ParseDate(frame.String("45356"))
	if !ok || !got.Equal(want) {
		t.Fatalf("serial string want %s, got %s ok=%v", want, got, ok)
	}

	// 超出合理范围的数字不是日期
	if _, ok := ParseDate(frame.Number(123)); ok {
		t.Fatalf("123 should not parse as a date")
	}
}

func TestParseDate_Garbage(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"", "abc", "2024-13-40", "次日达"} {
		if _, ok := ParseDate(frame.String(s)); ok {
			t.Fatalf("%q should not parse", s)
		}
	}
}

func TestNormalizeDateColumn_AllNullFails(t *testing.T) {
	t.Parallel()

	f, _ := frame.FromRows([]string{"date"}, [][]frame.Value{
		{frame.String("not a date")},
		{frame.String("also bad")},
	})
	_, err := NormalizeDateColumn(f, "date", true)
	if !errors.Is(err, ErrDateColumnUnparseable) {
		t.Fatalf("want ErrDateColumnUnparseable, got %v", err)
	}
}

func TestNormalizeDateColumn_PartialNulls(t *testing.T) {
	t.Parallel()

	f, _ := frame.FromRows([]string{"date"}, [][]frame.Value{
		{frame.String("2024-01-05")},
		{frame.String("junk")},
	})
	out, err := NormalizeDateColumn(f, "date", true)
	if err != nil {
		t.Fatalf("NormalizeDateColumn: %v", err)
	}
	if _, ok := out.At(0, "date").Date(); !ok {
		t.Fatalf("first row should be a date")
	}
	if !out.At(1, "date").IsNull() {
		t.Fatalf("unparseable cell should become null")
	}
}
