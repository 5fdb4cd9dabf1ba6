package infra

import "time"

// Clock é a fonte de tempo dos limiters e verificadores de token.
//
// O relógio padrão usa time.Now, que carrega leitura monotônica; subtrações
// entre instantes dele nunca andam para trás com ajustes do relógio de parede.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock é o relógio de produção.
var SystemClock Clock = systemClock{}
