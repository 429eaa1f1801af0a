package iso7816

import "testing"

func exchange(cmd *CommandAPDU, sw StatusWord, data ...byte) Transaction {
	return Transaction{Command: cmd, Response: &ResponseAPDU{Data: data, Status: sw}}
}

func TestTrace(t *testing.T) {
	selectPPSE := NewCommandAPDU(0x00, 0xA4, 0x04, 0x00, []byte("2PAY.SYS.DDF01"), 0x00)
	getResponse := NewCommandAPDU(0x00, 0xC0, 0x00, 0x00, nil, 0x02)

	tests := []struct {
		name     string
		trace    Trace
		success  bool
		wantSW   StatusWord
		wantData []byte
	}{
		{
			name:  "Empty",
			trace: nil,
		},
		{
			name:    "Single exchange",
			trace:   Trace{exchange(selectPPSE, SW_NO_ERROR, 0x6F, 0x00)},
			success: true,
			wantSW:  SW_NO_ERROR,
			wantData: []byte{
				0x6F, 0x00,
			},
		},
		{
			name: "Chained with GET RESPONSE",
			trace: Trace{
				exchange(selectPPSE, NewStatusWord(0x61, 0x02)),
				exchange(getResponse, SW_NO_ERROR, 0x6F, 0x00),
			},
			success:  true,
			wantSW:   SW_NO_ERROR,
			wantData: []byte{0x6F, 0x00},
		},
		{
			name: "Final exchange fails",
			trace: Trace{
				exchange(selectPPSE, NewStatusWord(0x61, 0x02)),
				exchange(getResponse, SW_ERR_WRONG_LENGTH),
			},
			wantSW: SW_ERR_WRONG_LENGTH,
		},
		{
			name:  "Missing response",
			trace: Trace{{Command: selectPPSE}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.trace.IsSuccess(); got != tt.success {
				t.Errorf("IsSuccess() = %v, want %v", got, tt.success)
			}

			resp := tt.trace.Response()
			if tt.wantSW == 0 {
				if resp != nil {
					t.Errorf("Response() = %v, want nil", resp)
				}
				return
			}
			if resp == nil {
				t.Fatal("Response() = nil")
			}
			if resp.Status != tt.wantSW {
				t.Errorf("status = %s, want %s", resp.Status, tt.wantSW)
			}
			if string(resp.Data) != string(tt.wantData) {
				t.Errorf("data = %X, want %X", resp.Data, tt.wantData)
			}
			if tt.trace.Last() != &tt.trace[len(tt.trace)-1] {
				t.Error("Last() must point at the final exchange")
			}
		})
	}
}
