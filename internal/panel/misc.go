package panel

import (
	"context"

	"abipanel/internal/errors"
	"abipanel/internal/events"
	"abipanel/internal/store"
	"abipanel/internal/units"

	"github.com/sirupsen/logrus"
)

// MiscForm 单位和 Gas 上限设置，修改直接写入共享存储
type MiscForm struct {
	settings  store.SettingsStore
	publisher events.Publisher
	logger    *logrus.Logger
}

// NewMiscForm 创建设置表单
func NewMiscForm(settings store.SettingsStore, publisher events.Publisher, logger *logrus.Logger) *MiscForm {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &MiscForm{
		settings:  settings,
		publisher: publisher,
		logger:    logger,
	}
}

// Settings 当前设置
func (f *MiscForm) Settings() store.UserSettings {
	return f.settings.Settings()
}

// Options 单位选项
func (f *MiscForm) Options() []units.Option {
	return units.Options
}

// SetUnit 选择单位，只接受枚举中的值
func (f *MiscForm) SetUnit(value string) error {
	unit, err := units.Parse(value)
	if err != nil {
		return errors.Wrap(err, errors.KindValidation, errors.CodeInvalidUnit, "Invalid unit.")
	}

	if err := f.settings.SetSettings(store.SettingsPatch{Unit: &unit}); err != nil {
		return errors.NewStorageError(err)
	}

	f.notify(map[string]string{"unit": string(unit)})
	return nil
}

// SetGasLimit 写入 Gas 上限，任意文本均可
func (f *MiscForm) SetGasLimit(text string) error {
	if err := f.settings.SetSettings(store.SettingsPatch{GasLimit: &text}); err != nil {
		return errors.NewStorageError(err)
	}

	f.notify(map[string]string{"gas_limit": text})
	return nil
}

func (f *MiscForm) notify(fields map[string]string) {
	event := events.NewEvent(events.EventSettingsChanged, fields)
	if err := f.publisher.Publish(context.Background(), event); err != nil {
		f.logger.Warnf("发布事件 %s 失败: %v", event.Type, err)
	}
}
