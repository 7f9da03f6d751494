package emballoc

import (
	"fmt"
	"os"
)

// locNone marks an error without an associated pool offset.
const locNone = -1

// clearError resets the last-error record. Malloc, Free and Realloc do
// this on entry, so after one of them the record describes that call.
func (p *Pool) clearError() {
	p.setWord(auxOffset+auxLastErrorOffset, uint64(NoError))
	p.fill(auxOffset+auxMessageOffset, errorMessageSize, 0)
}

// setError records an error on the pool: code and message into the aux
// record, the user callback if one is set, and an appended message plus
// pool hex dump when a dump file is configured. loc, when not locNone,
// is the pool offset the error points at and is folded into the message.
func (p *Pool) setError(code ErrorCode, message string, loc int) {
	if loc != locNone {
		message = fmt.Sprintf("%s (at the %p location / %d mempool offset)",
			message, &p.mem[loc], loc)
	}

	p.setWord(auxOffset+auxLastErrorOffset, uint64(code))
	msgBuf := p.mem[auxOffset+auxMessageOffset : auxOffset+auxMessageOffset+errorMessageSize]
	for i := range msgBuf {
		msgBuf[i] = 0
	}
	copy(msgBuf, message)

	if p.errorCallback != nil {
		p.errorCallback(code, p.lastErrorMessage())
	}

	if name := p.dumpFileName(); name != "" {
		f, err := os.OpenFile(name, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr,
				"Error writing the error message in the mempool error dump file: %v\n", err)
			return
		}
		fmt.Fprintf(f, "\n%s\n", p.lastErrorMessage())
		p.dumpTo(f, loc)
		f.Close()
	}
}

// lastErrorCode reads the recorded code without locking.
func (p *Pool) lastErrorCode() ErrorCode {
	return ErrorCode(p.word(auxOffset + auxLastErrorOffset))
}

// lastErrorMessage reads the recorded message without locking.
func (p *Pool) lastErrorMessage() string {
	buf := p.mem[auxOffset+auxMessageOffset : auxOffset+auxMessageOffset+errorMessageSize]
	n := 0
	for n < len(buf) && buf[n] != 0 {
		n++
	}
	return string(buf[:n])
}
