package emotion

import "testing"

func TestAnalyzeSadUser(t *testing.T) {
	decision := Analyze("我今天很难过，一个人很孤单", "我会陪着你一起面对")
	if decision.Emotion != Sad {
		t.Fatalf("expected sad emotion, got %s", decision.Emotion)
	}
	if decision.Scale < 1 || decision.Scale > 5 {
		t.Fatalf("emotion scale out of range: %f", decision.Scale)
	}
	if !decision.Negative() {
		t.Fatal("sad should be a distress emotion")
	}
}

func TestAnalyzeHopelessOutweighsSad(t *testing.T) {
	decision := Analyze("我很难过，感觉已经绝望了，撑不住了……", "")
	if decision.Emotion != Hopeless {
		t.Fatalf("expected hopeless emotion, got %s", decision.Emotion)
	}
	if decision.Intensity() < 0.5 {
		t.Fatalf("expected strong intensity, got %f", decision.Intensity())
	}
}

func TestAnalyzeFallsBackToResponse(t *testing.T) {
	decision := Analyze("嗯", "听起来你最近压力很大，也很焦虑和担心")
	if decision.Emotion != Anxious {
		t.Fatalf("expected anxious emotion, got %s", decision.Emotion)
	}

	direct := Analyze("最近压力很大，也很焦虑和担心", "")
	if decision.Intensity() >= direct.Intensity() {
		t.Fatalf("response-derived intensity %f should be below direct %f", decision.Intensity(), direct.Intensity())
	}
}

func TestAnalyzePositiveIsCapped(t *testing.T) {
	decision := Analyze("太好了！好开心！谢谢你，我很快乐也很满意!!!", "")
	if decision.Emotion != Happy {
		t.Fatalf("expected happy emotion, got %s", decision.Emotion)
	}
	if decision.Scale > positiveScaleCap {
		t.Fatalf("positive scale should be capped, got %f", decision.Scale)
	}
}

func TestIntensityNeutral(t *testing.T) {
	decision := Analyze("今天去上班了", "好的")
	if decision.Emotion != Neutral {
		t.Fatalf("expected neutral, got %s", decision.Emotion)
	}
	if got := decision.Intensity(); got != 0 {
		t.Fatalf("neutral intensity should be 0, got %f", got)
	}
}

func TestIntensityRange(t *testing.T) {
	cases := []Decision{
		{Emotion: Sad, Scale: 1, Score: 1},
		{Emotion: Sad, Scale: 3, Score: 8},
		{Emotion: Hopeless, Scale: 5, Score: 20},
	}
	want := []float64{0, 0.5, 1}
	for i, d := range cases {
		if got := d.Intensity(); got != want[i] {
			t.Fatalf("case %d: want %f got %f", i, want[i], got)
		}
	}
}
